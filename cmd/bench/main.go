// Command bench drives a synthetic draw workload through a producer cache,
// an in-process ordered stream, and a consumer cache, and exposes optional
// pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/paintcache/consumer"
	pmet "github.com/IvanBrykalov/paintcache/metrics/prom"
	"github.com/IvanBrykalov/paintcache/payload"
	"github.com/IvanBrykalov/paintcache/producer"
	"github.com/IvanBrykalov/paintcache/stream"
)

type config struct {
	budget          int64
	duration        time.Duration
	keys            uint64
	zipfS, zipfV    float64
	seed            int64
	minSize         int
	maxSize         int
	reconcileEvery  int
	invalidateEvery int
	compress        int
}

func main() {
	// ---- Flags ----
	var (
		cfg         config
		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Int64Var(&cfg.budget, "budget", 4<<20, "producer budget in bytes")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "benchmark duration")
	flag.Uint64Var(&cfg.keys, "keys", 50_000, "id space per kind")
	flag.Float64Var(&cfg.zipfS, "zipf_s", 1.1, "Zipf s > 1 (skew)")
	flag.Float64Var(&cfg.zipfV, "zipf_v", 1.0, "Zipf v")
	flag.Int64Var(&cfg.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.IntVar(&cfg.minSize, "min_size", 64, "minimum payload size")
	flag.IntVar(&cfg.maxSize, "max_size", 4096, "maximum payload size")
	flag.IntVar(&cfg.reconcileEvery, "reconcile", 256, "draws between budget reconciles (frame size)")
	flag.IntVar(&cfg.invalidateEvery, "invalidate", 0, "draws between full invalidations (0 = never)")
	flag.IntVar(&cfg.compress, "compress", stream.DefaultCompressThreshold, "s2 compression threshold (negative disables)")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.keys == 0 || cfg.zipfS <= 1 || cfg.zipfV < 1 || cfg.minSize <= 0 || cfg.maxSize < cfg.minSize || cfg.reconcileEvery <= 0 {
		logger.Error("invalid flags", "keys", cfg.keys, "min_size", cfg.minSize, "max_size", cfg.maxSize, "reconcile", cfg.reconcileEvery)
		os.Exit(2)
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", "addr", *pprofAddr)
			logger.Error("pprof server stopped", "err", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "paintcache", "bench", nil)
	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("metrics: serving", "addr", *metricsAddr)
			logger.Error("metrics server stopped", "err", http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	res, err := run(context.Background(), cfg, metrics, logger)
	if err != nil {
		logger.Error("bench failed", "err", err)
		os.Exit(1)
	}

	// ---- Report ----
	hitRate := 0.0
	if res.draws > 0 {
		hitRate = float64(res.hits) / float64(res.draws) * 100
	}
	saved := 0.0
	if res.rawBytes > 0 {
		saved = (1 - float64(res.wireBytes)/float64(res.rawBytes)) * 100
	}
	fmt.Printf("budget=%d keys=%d dur=%v seed=%d\n", cfg.budget, cfg.keys, res.elapsed, cfg.seed)
	fmt.Printf("draws=%d (%.0f draws/s)  hits=%d  hit-rate=%.2f%%\n",
		res.draws, float64(res.draws)/res.elapsed.Seconds(), res.hits, hitRate)
	fmt.Printf("raw=%d B  wire=%d B  saved=%.2f%%  purged=%d  invalidations=%d\n",
		res.rawBytes, res.wireBytes, saved, res.purged, res.invalidations)
	fmt.Printf("producer: entries=%d bytes=%d  consumer: paths=%d text_blobs=%d\n",
		res.entries, res.bytesUsed, res.paths, res.textBlobs)
}

type result struct {
	elapsed       time.Duration
	draws, hits   int64
	rawBytes      int64
	wireBytes     int64
	purged        int64
	invalidations int64
	entries       int
	bytesUsed     int64
	paths         int
	textBlobs     int
}

// run pumps draws through the stream until the duration elapses. The producer
// and consumer each own one goroutine; the pipe is the only thing they share.
func run(parent context.Context, cfg config, metrics *pmet.Adapter, logger *slog.Logger) (result, error) {
	var res result

	pc := producer.New(producer.Options{MaxBytes: cfg.budget, Metrics: metrics, Logger: logger})
	cc := consumer.New[[]byte, []byte](consumer.Options{Metrics: metrics, Logger: logger})

	pr, pw := io.Pipe()
	enc := stream.NewEncoder(pw, stream.EncoderOptions{CompressThreshold: cfg.compress})
	rec := stream.NewRecorder(pc, enc)
	rep := stream.NewReplayer(stream.NewDecoder(pr, stream.DecoderOptions{}), cc, stream.ReplayerOptions{Logger: logger})

	ctx, cancel := context.WithTimeout(parent, cfg.duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := produce(gctx, cfg, rec, &res)
		if err == nil {
			err = rec.Flush()
		}
		_ = pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := rep.Run(context.WithoutCancel(gctx))
		_ = pr.CloseWithError(err)
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.elapsed = time.Since(start)

	st := rec.Stats()
	res.purged, res.invalidations = st.Purged, st.PurgeAlls
	res.wireBytes = enc.Written()
	res.entries, res.bytesUsed = pc.Len(), pc.BytesUsed()
	res.paths, res.textBlobs = cc.Len(payload.Path), cc.Len(payload.TextBlob)

	// Both goroutines are done; the caches must agree.
	for k := payload.Kind(0); k < payload.NumKinds; k++ {
		resident := pc.Resident(k)
		if len(resident) != cc.Len(k) {
			return res, fmt.Errorf("%s: producer holds %d ids, consumer %d", k, len(resident), cc.Len(k))
		}
		for _, id := range resident {
			if !cc.Has(k, id) {
				return res, fmt.Errorf("%s/%d resident on producer only", k, id)
			}
		}
	}
	return res, nil
}

// produce issues draws until ctx is done. Payload bytes are regenerated per
// draw; only their length matters to the producer.
func produce(ctx context.Context, cfg config, rec *stream.Recorder, res *result) error {
	r := rand.New(rand.NewSource(cfg.seed))
	zipf := rand.NewZipf(r, cfg.zipfS, cfg.zipfV, cfg.keys-1)
	buf := make([]byte, cfg.maxSize)
	r.Read(buf)

	for i := 1; ; i++ {
		if ctx.Err() != nil {
			_, err := rec.Reconcile()
			return err
		}
		id := payload.ID(zipf.Uint64())
		kind := payload.Kind(r.Intn(payload.NumKinds))
		size := cfg.minSize + int(id)%(cfg.maxSize-cfg.minSize+1)

		hit, err := rec.Draw(kind, id, buf[:size])
		if err != nil {
			return err
		}
		res.draws++
		res.rawBytes += int64(size)
		if hit {
			res.hits++
		}

		if i%cfg.reconcileEvery == 0 {
			if _, err := rec.Reconcile(); err != nil {
				return err
			}
		}
		if cfg.invalidateEvery > 0 && i%cfg.invalidateEvery == 0 {
			if _, err := rec.Invalidate(); err != nil {
				return err
			}
		}
	}
}
