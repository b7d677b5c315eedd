// Package main provides the cuemix command line tool.
package main

func main() {
	Execute()
}
