// AvatarSync - real-time facial animation demo: a producer loop synthesizes
// lip-sync from canned lines while the consumer render loop applies the
// batches to a morphing head.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/normanking/avatarsync/internal/anim"
	"github.com/normanking/avatarsync/internal/bridge"
	"github.com/normanking/avatarsync/internal/bus"
	"github.com/normanking/avatarsync/internal/config"
	"github.com/normanking/avatarsync/internal/logging"
	"github.com/normanking/avatarsync/internal/morph"
	"github.com/normanking/avatarsync/internal/perf"
	"github.com/normanking/avatarsync/internal/renderer"
	"github.com/normanking/avatarsync/internal/speech"
)

func init() {
	runtime.LockOSThread()
}

var demoLines = []string{
	"Hello there, how are you today?",
	"This is amazing, I love how smooth it looks!",
	"Hmm, let me think about that for a moment.",
	"Really? That is quite unexpected news.",
	"Sorry, I did not catch what you said.",
}

func main() {
	meshPath := flag.String("mesh", "", "glTF avatar path (empty = placeholder sphere)")
	detectorPath := flag.String("detector", "", "recorded landmark capture (JSON); empty = synthesized animation")
	showFPS := flag.Bool("fps", true, "Log FPS once per second")
	flag.Parse()

	syslog, err := logging.New(nil)
	if err != nil {
		os.Exit(1)
	}
	defer syslog.Close()
	log := syslog.Component("main")

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("config load failed, using defaults")
		cfg = config.DefaultConfig()
	}
	if *meshPath != "" {
		cfg.Window.Mesh = *meshPath
	}

	if err := glfw.Init(); err != nil {
		log.Fatal().Err(err).Msg("glfw init failed")
	}
	defer glfw.Terminate()

	rend, err := renderer.New(renderer.Config{
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		Title:  cfg.Window.Title,
		VSync:  true,
		MSAA:   4,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("renderer init failed")
	}
	defer rend.Shutdown()

	avatar := loadAvatar(cfg.Window.Mesh, syslog)
	defer avatar.Delete()

	events := bus.NewEventBus()
	busLog := syslog.Component("events")
	events.SubscribeMultiple([]bus.EventType{
		bus.EventTypePlaybackStarted,
		bus.EventTypePlaybackStopped,
		bus.EventTypePlaybackEnded,
		bus.EventTypeUtteranceQueued,
		bus.EventTypeEmotionChanged,
		bus.EventTypeQualityChanged,
		bus.EventTypeBridgeConnected,
		bus.EventTypeBridgeDisconnected,
		bus.EventTypeFrameDropped,
		bus.EventTypeFenceTimeout,
		bus.EventTypeTelemetry,
	}, func(ev bus.Event) {
		busLog.Debug().Str("event", string(ev.Type)).Fields(ev.Data).Msg("bus event")
	})
	events.Subscribe(bus.EventTypeQualityChanged, func(ev bus.Event) {
		busLog.Info().Fields(ev.Data).Msg("quality level changed")
	})

	// Both runtimes live in this process; the loopback transport keeps
	// them share-nothing anyway.
	prodEnd, consEnd := bridge.NewLoopback(cfg.Bridge.MaxQueueDepth + 4)
	defer prodEnd.Close()

	producer := bridge.NewProducer(bridge.ProducerConfig{
		FrameInterval:   cfg.FrameInterval(),
		UpdateThreshold: cfg.Bridge.UpdateThreshold,
		MaxQueueDepth:   cfg.Bridge.MaxQueueDepth,
		SyncTimeout:     cfg.Bridge.SyncTimeout,
	}, prodEnd, events, syslog.Zerolog())

	var detector speech.Detector
	if *detectorPath != "" {
		det, err := speech.LoadDetector(context.Background(),
			[]speech.DetectorSource{speech.FileSource{Path: *detectorPath}},
			syslog.Component("detector"))
		if err != nil {
			log.Warn().Err(err).Msg("landmark detector unavailable, falling back to synthesized animation")
		} else {
			detector = det
			defer detector.Close()
		}
	}

	stopWatch, err := config.Watch(syslog.Component("config"), func(fresh *config.Config) {
		producer.Reconfigure(bridge.ProducerConfig{
			FrameInterval:   fresh.FrameInterval(),
			UpdateThreshold: fresh.Bridge.UpdateThreshold,
			MaxQueueDepth:   fresh.Bridge.MaxQueueDepth,
			SyncTimeout:     fresh.Bridge.SyncTimeout,
		})
	})
	if err != nil {
		log.Warn().Err(err).Msg("config watch unavailable")
	} else {
		defer stopWatch()
	}

	registry := morph.NewRegistry(avatar, syslog.Component("morph"))
	applier := morph.NewApplier(registry, syslog.Zerolog())
	consumer := morph.NewConsumer(consEnd, applier, syslog.Zerolog())
	consumer.SetPreFence(func() bool {
		avatar.Flush()
		fence := renderer.InsertFence()
		defer fence.Delete()
		return fence.Wait(cfg.Bridge.SyncTimeout)
	})

	stopProducer := make(chan struct{})
	go runProducer(cfg, producer, events, detector, syslog, stopProducer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("render loop starting")

	frameStart := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	for !rend.ShouldClose() {
		select {
		case <-sigChan:
			log.Info().Msg("shutdown signal received")
			close(stopProducer)
			return
		default:
		}

		now := time.Now()
		dt := now.Sub(frameStart)
		frameStart = now
		if dt > 100*time.Millisecond {
			dt = 100 * time.Millisecond
		}

		consumer.Frame(dt, avatar)
		avatar.Flush()

		rend.BeginFrame()
		avatar.Draw()
		rend.EndFrame()

		frameCount++
		if *showFPS && time.Since(fpsTimer) >= time.Second {
			stats := producer.Stats()
			log.Info().
				Int("fps", frameCount).
				Uint64("sent", stats.BatchesSent).
				Uint64("dropped", stats.DroppedFrames).
				Uint64("fenceTimeouts", stats.FenceTimeouts).
				Msg("frame stats")
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	close(stopProducer)
	log.Info().Msg("render loop ended")
}

// runProducer is the animation-intent side: a fixed-rate tick sampling the
// scheduler at playback time, pre-warming toward predicted events, merging
// idle, pruning by quality, and pushing delta-compressed batches across the
// bridge. A loaded landmark detector overrides the synthesized sample with
// live measurements.
func runProducer(cfg *config.Config, producer *bridge.Producer, events *bus.EventBus, detector speech.Detector, syslog *logging.Logger, stop <-chan struct{}) {
	log := syslog.Component("producer")

	scheduler := anim.NewScheduler()
	scheduler.SetLookahead(cfg.Animation.Lookahead)
	idle := anim.NewIdleAnimator()
	idle.SetEnabled(cfg.Idle.Enabled)
	idle.SetIntensity(cfg.Idle.Intensity)
	idle.SetBlinkGap(cfg.Idle.BlinkGapMin, cfg.Idle.BlinkGapMax)

	optimizer := perf.NewOptimizer(cfg.FrameInterval())
	clock := speech.NewClock()

	var playbackDone atomic.Bool
	clock.OnEnd(func() {
		playbackDone.Store(true)
		events.Publish(bus.Event{Type: bus.EventTypePlaybackEnded})
	})

	lastEmotion := ""
	speak := func(line string) {
		u := speech.Synthesize(line)
		if len(u.Keyframes) == 0 {
			return
		}
		if label := string(u.Emotion.Label); label != lastEmotion {
			events.Publish(bus.Event{Type: bus.EventTypeEmotionChanged, Data: map[string]any{
				"from": lastEmotion,
				"to":   label,
			}})
			lastEmotion = label
		}
		scheduler.Reset()
		for _, kf := range u.Keyframes {
			if err := scheduler.Push(kf); err != nil {
				log.Warn().Err(err).Msg("keyframe rejected")
			}
		}
		clock.Start(u.Duration)
		events.Publish(bus.Event{Type: bus.EventTypeUtteranceQueued, Data: map[string]any{
			"emotion": string(u.Emotion.Label),
			"frames":  len(u.Keyframes),
		}})
		events.Publish(bus.Event{Type: bus.EventTypePlaybackStarted, Data: map[string]any{
			"duration": u.Duration.String(),
		}})
		log.Info().Str("emotion", string(u.Emotion.Label)).Dur("duration", u.Duration).Msg("speaking")
	}

	lineIdx := 0
	speak(demoLines[lineIdx])
	nextLine := time.Now().Add(6 * time.Second)

	start := time.Now()
	lastQuality := optimizer.Quality()
	var lastTele time.Time
	ticker := time.NewTicker(cfg.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			clock.Stop()
			events.Publish(bus.Event{Type: bus.EventTypePlaybackStopped})
			return
		case now := <-ticker.C:
			tickStart := time.Now()

			if playbackDone.Swap(false) {
				stopKF := scheduler.Stop(clock.Elapsed())
				producer.Update(stopKF.Channels, now)
			}

			if now.After(nextLine) {
				lineIdx = (lineIdx + 1) % len(demoLines)
				speak(demoLines[lineIdx])
				nextLine = now.Add(6 * time.Second)
			}

			sample := map[string]float64{}
			if clock.Ready() {
				pos := clock.Elapsed()
				sample = scheduler.Sample(pos)
				sample = anim.Prewarm(sample, scheduler.Predictions(pos), pos)
			}
			if detector != nil {
				if m, err := detector.Measure(); err == nil && len(m) > 0 {
					sample = m
				}
			}
			merged := anim.MergeIdle(sample, idle.Sample(now.Sub(start).Seconds()))
			merged = optimizer.Prune(merged)

			producer.Update(merged, now)
			producer.Tick(now)

			optimizer.AddSample(time.Since(tickStart))
			if q := optimizer.Quality(); q != lastQuality {
				events.Publish(bus.Event{Type: bus.EventTypeQualityChanged, Data: map[string]any{
					"from": lastQuality,
					"to":   q,
				}})
				lastQuality = q
			}
			if tele, ok := producer.LastTelemetry(); ok && tele.Timestamp.After(lastTele) {
				lastTele = tele.Timestamp
				events.Publish(bus.Event{Type: bus.EventTypeTelemetry, Data: map[string]any{
					"fps":            tele.FPS,
					"activeChannels": tele.ActiveChannels,
				}})
			}
		}
	}
}

func loadAvatar(meshPath string, syslog *logging.Logger) *renderer.Avatar {
	log := syslog.Component("avatar")
	if meshPath != "" {
		av, err := renderer.LoadAvatarFromGLTF(meshPath)
		if err == nil {
			log.Info().Str("path", meshPath).Int("meshes", av.MeshCount()).Msg("avatar loaded")
			return av
		}
		log.Warn().Err(err).Str("path", meshPath).Msg("avatar load failed, using placeholder")
	}
	return renderer.NewPlaceholderAvatar()
}
