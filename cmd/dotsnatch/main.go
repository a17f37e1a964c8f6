package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"dotsnatch-go/internal/capture"
	"dotsnatch-go/internal/capture/v4l2"
	"dotsnatch-go/internal/config"
	"dotsnatch-go/internal/decode"
	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/frame"
	"dotsnatch-go/internal/ingest"
	"dotsnatch-go/internal/output"
	"dotsnatch-go/internal/preview"
	"dotsnatch-go/internal/processing"
	"dotsnatch-go/internal/publish"
	"dotsnatch-go/internal/server"
	"dotsnatch-go/internal/simulator"
	"dotsnatch-go/internal/system"
	"dotsnatch-go/internal/types"
	"dotsnatch-go/internal/zone"
)

func main() {
	var (
		port           = flag.Int("port", 8888, "HTTP port for the web UI")
		source         = flag.String("source", "", "Frame source: v4l2, sim or zmq (default sim)")
		devicePath     = flag.String("device", "", "V4L2 device path (default "+v4l2.DefaultPath+")")
		endpoint       = flag.String("endpoint", "", "ZMQ endpoint for the zmq source")
		width          = flag.Int("width", 0, "Requested frame width (default 640)")
		height         = flag.Int("height", 0, "Requested frame height (default 480)")
		encoding       = flag.String("encoding", "", "Requested pixel encoding: yuyv or mjpeg (default yuyv)")
		acquireTimeout = flag.Duration("acquire-timeout", v4l2.DefaultTimeout, "Longest wait for one frame")
		simRate        = flag.Float64("sim-rate", 30, "Simulated frame rate (frames/sec)")
		workers        = flag.Int("workers", 0, "Detector workers (0 uses every logical CPU)")
		publishAddr    = flag.String("publish", "", "ZMQ PUB bind address for detection events, empty disables")
		uiRate         = flag.Duration("ui-rate", 1*time.Second, "Snapshot interval for websocket clients")
		previewWidth   = flag.Int("preview-width", 320, "Preview thumbnail width")
		previewRate    = flag.Duration("preview-rate", 200*time.Millisecond, "Minimum interval between preview renders")
		outputDir      = flag.String("output-dir", "output", "Directory for detection series files")
		seriesEvery    = flag.Int("series-every", 1000, "Events buffered before the series file is appended")
		rawLogEnabled  = flag.Bool("raw-log", false, "Record every detection event as CBOR")
		rawLogDir      = flag.String("raw-log-dir", "rawlog", "Directory for event logs")
		logEvery       = flag.Int("log-every", 100, "Log every Nth dropped frame or ingest error")
		configPath     = flag.String("config", "", "YAML file with device, params and zones")
		savePath       = flag.String("save-config", "", "Write the tuned params and zones here on exit")
	)
	flag.Parse()

	cfg := config.AppConfig{
		Port:           *port,
		Source:         *source,
		DevicePath:     *devicePath,
		Endpoint:       *endpoint,
		Width:          *width,
		Height:         *height,
		Encoding:       *encoding,
		AcquireTimeout: *acquireTimeout,
		SimRate:        *simRate,
		Workers:        *workers,
		PublishAddr:    *publishAddr,
		UIRate:         *uiRate,
		PreviewWidth:   *previewWidth,
		PreviewRate:    *previewRate,
		OutputDir:      *outputDir,
		SeriesEvery:    *seriesEvery,
		RawLogEnabled:  *rawLogEnabled,
		RawLogDir:      *rawLogDir,
		LogEvery:       *logEvery,
		ConfigPath:     *configPath,
		SavePath:       *savePath,
	}

	params := detect.DefaultParams()
	params.Workers = system.DefaultWorkers()
	var fileZones []zone.Zone
	if cfg.ConfigPath != "" {
		fc, err := config.Load(cfg.ConfigPath, params)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg.Apply(fc)
		params = *fc.Params
		fileZones = fc.Zones
	}
	cfg.FillDefaults()
	if cfg.Workers > 0 {
		params.Workers = cfg.Workers
	}
	if cfg.UIRate <= 0 {
		cfg.UIRate = 1 * time.Second
	}

	enc, err := frame.ParseEncoding(cfg.Encoding)
	if err != nil {
		log.Fatalf("invalid encoding: %v", err)
	}
	pixels, err := frame.NewPixelFormat(cfg.Width, cfg.Height)
	if err != nil {
		log.Fatalf("invalid frame size: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device, err := openDevice(cfg, params)
	if err != nil {
		log.Fatalf("open %s source: %v", cfg.Source, err)
	}
	engine := capture.NewEngine(device)
	format, err := engine.Open(capture.Format{Pixels: pixels, Encoding: enc})
	if err != nil {
		log.Fatalf("start capture: %v", err)
	}
	log.Printf("capture session %s: %s %s from %s", engine.SessionID(), format.Pixels, format.Encoding, cfg.Source)
	if format.Pixels != pixels {
		log.Printf("device adjusted frame size from %s to %s", pixels, format.Pixels)
	}
	cfg.Width, cfg.Height, cfg.Encoding = format.Pixels.Width, format.Pixels.Height, format.Encoding.String()

	zones := fileZones
	if len(zones) == 0 {
		zones = zone.Defaults(format.Pixels)
	}
	classifier, err := zone.NewClassifier(zones)
	if err != nil {
		_ = engine.Teardown()
		log.Fatalf("invalid zones: %v", err)
	}
	for _, pair := range classifier.Overlaps() {
		log.Printf("zones %q and %q overlap; %q wins shared pixels", pair[0], pair[1], pair[0])
	}

	paramStore := config.NewParamStore(params)
	timings := processing.NewTimings()
	previews := preview.NewStore(cfg.PreviewWidth, cfg.PreviewRate, zones, paramStore.Snapshot)
	pipeline := &processing.Pipeline{
		SessionID: engine.SessionID(),
		Engine:    engine,
		Decoder:   decode.New(format.Pixels, format.Encoding, nil),
		Detector:  detect.New(format.Pixels),
		Zones:     classifier,
		Params:    paramStore,
		Timings:   timings,
		Hook:      previews.Capture,
		LogEvery:  cfg.LogEvery,
	}

	var publisher *publish.Publisher
	if cfg.PublishAddr != "" {
		publisher, err = publish.NewPublisher(cfg.PublishAddr)
		if err != nil {
			_ = engine.Teardown()
			log.Fatalf("start publisher: %v", err)
		}
		log.Printf("publishing detection events on %s", cfg.PublishAddr)
	}
	var rawLog *output.RawLogWriter
	if cfg.RawLogEnabled {
		rawLog, err = output.NewRawLogWriter(cfg.RawLogDir, "events")
		if err != nil {
			_ = engine.Teardown()
			log.Fatalf("failed to start raw log: %v", err)
		}
		log.Printf("recording events to %s", rawLog.Path())
	}

	events := make(chan types.DetectionEvent, 64)
	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		defer close(events)
		if err := pipeline.Run(ctx, events); err != nil {
			log.Printf("capture stopped: %v", err)
			stop()
		}
	}()

	uiMessages := make(chan any, 16)
	var latestSnapshotMu sync.Mutex
	var latestSnapshot types.UISnapshot
	var hasSnapshot bool
	var sinks sinkMetrics
	runTimestamp := processing.Timestamp()
	agg := processing.NewAggregator(cfg.SeriesEvery)

	flushSeries := func() {
		if len(agg.History()) == 0 {
			return
		}
		if err := output.WriteSeries(cfg.OutputDir, runTimestamp, agg.History()); err != nil {
			sinks.seriesErrors.Add(1)
			log.Printf("series write failed: %v", err)
		}
		agg.Reset()
	}
	flushSnapshot := func() {
		snapshot := agg.SnapshotCopy(timings.Summary())
		if _, seq, ok := previews.Latest(); ok {
			snapshot.PreviewSeq = seq
		}
		latestSnapshotMu.Lock()
		latestSnapshot = snapshot
		hasSnapshot = true
		latestSnapshotMu.Unlock()
		select {
		case uiMessages <- snapshot:
		default:
		}
	}

	fanoutDone := make(chan struct{})
	go func() {
		defer close(fanoutDone)
		defer close(uiMessages)
		ticker := time.NewTicker(cfg.UIRate)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					flushSeries()
					flushSnapshot()
					return
				}
				select {
				case uiMessages <- ev:
				default:
				}
				if publisher != nil {
					if err := publisher.Publish(ev); err != nil {
						sinks.publishErrors.Add(1)
					}
				}
				if rawLog != nil {
					if err := rawLog.RecordEvent(ev); err != nil {
						sinks.rawLogErrors.Add(1)
					}
				}
				if agg.AddEvent(ev) {
					flushSeries()
				}
			case <-ticker.C:
				flushSnapshot()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := engine.Stats()
				frameTiming := timings.Summary()["frame"]
				log.Printf("capture stats: acquired=%d acquire_errors=%d frame_p50=%.2fms frame_p95=%.2fms",
					stats.Acquired, stats.AcquireErrors, frameTiming.P50MS, frameTiming.P95MS)
			}
		}
	}()

	statusFn := func() map[string]any {
		host, err := system.Read()
		if err != nil {
			log.Printf("host stats incomplete: %v", err)
		}
		payload := map[string]any{
			"capture": engine.Stats(),
			"source":  cfg.Source,
			"timings": timings.Summary(),
			"host":    host,
			"sinks":   sinks.snapshot(),
			"params":  paramStore.Version(),
		}
		if publisher != nil {
			payload["published_total"] = publisher.Sent()
		}
		if dev, ok := device.(*ingest.Device); ok {
			payload["ingest_dropped_total"] = dev.Dropped()
		}
		return payload
	}
	snapshotFn := func() any {
		latestSnapshotMu.Lock()
		defer latestSnapshotMu.Unlock()
		if !hasSnapshot {
			return nil
		}
		return latestSnapshot
	}

	log.Printf("Starting web UI at http://localhost:%d\n", cfg.Port)
	opts := server.Options{
		Params:   paramStore,
		Zones:    zones,
		Preview:  previews,
		Status:   statusFn,
		Snapshot: snapshotFn,
	}
	if err := server.Run(ctx, cfg, uiMessages, opts); err != nil {
		log.Printf("server stopped: %v", err)
	}
	stop()

	<-captureDone
	<-fanoutDone
	if err := engine.Teardown(); err != nil {
		log.Printf("capture teardown: %v", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Printf("publisher close failed: %v", err)
		}
	}
	if rawLog != nil {
		if err := rawLog.Close(); err != nil {
			log.Printf("raw log close failed: %v", err)
		}
	}
	if cfg.SavePath != "" {
		if err := config.Save(cfg.SavePath, paramStore.Snapshot(), zones); err != nil {
			log.Printf("save config: %v", err)
		} else {
			log.Printf("saved params and zones to %s", cfg.SavePath)
		}
	}
	log.Printf("wrote detection series to %s", output.SeriesPath(cfg.OutputDir, runTimestamp))
}

func openDevice(cfg config.AppConfig, params detect.Params) (capture.Device, error) {
	switch cfg.Source {
	case "v4l2":
		path := cfg.DevicePath
		if path == "" {
			path = v4l2.DefaultPath
		}
		return v4l2.Open(path, cfg.AcquireTimeout)
	case "sim":
		simCfg := simulator.DefaultConfig()
		simCfg.Rate = cfg.SimRate
		simCfg.Params = params
		return simulator.New(simCfg), nil
	case "zmq":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("zmq source needs -endpoint")
		}
		return ingest.New(cfg.Endpoint, cfg.AcquireTimeout, cfg.LogEvery), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
