// ABOUTME: Channel-based PCM mixer package
// ABOUTME: Lock-free channel queues, the real-time mixing callback and the channel allocator
// Package mixer schedules pre-rendered sounds onto logical channels and mixes
// them into a stereo output stream with sample-accurate start times.
//
// An Engine owns 2N queues: N one-shot channels for independent sounds and N
// streaming channels, each allowing one buffer in flight behind the one that
// is playing. Producers call Play and PlayNext; the output backend calls Mix
// once per device period on its audio thread.
//
// Example:
//
//	out, _ := output.New(output.BackendOto, 20*time.Millisecond)
//	eng, err := mixer.New(mixer.DefaultConfig(), out)
//	if err != nil {
//		log.Fatal(eng.LastErrorText())
//	}
//	defer eng.Close()
//
//	now := time.Now()
//	ch, err := eng.Play(now, now.Add(100*time.Millisecond), mixer.AutoChannel, snd)
package mixer
