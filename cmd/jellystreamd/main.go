// Command jellystreamd serves JellyStream's virtual-channel core: the HTTP
// surface (playlists, EPG, stream proxy, schedule generation), the
// background maintainer, and a Prometheus /metrics endpoint. Grounded on
// the teacher's cmd/plex-tuner/main.go flag-parse-then-serve shape and its
// signal.Notify graceful-shutdown pattern, extended with context-cancelled
// draining of in-flight stream connections (SPEC_FULL.md §6 "Graceful
// shutdown").
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jellystream/jellystream/internal/config"
	"github.com/jellystream/jellystream/internal/health"
	"github.com/jellystream/jellystream/internal/httpapi"
	"github.com/jellystream/jellystream/internal/jellyfin"
	"github.com/jellystream/jellystream/internal/maintainer"
	"github.com/jellystream/jellystream/internal/pool"
	"github.com/jellystream/jellystream/internal/scheduler"
	"github.com/jellystream/jellystream/internal/sidecar"
	"github.com/jellystream/jellystream/internal/store"
	"github.com/jellystream/jellystream/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("jellystreamd: config: %v", err)
	}

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("jellystreamd: open store %s: %v", cfg.DatabaseURL, err)
	}
	defer st.Close()

	jf := jellyfin.NewHTTPClient(cfg.MediaServerURL, cfg.MediaServerAPIKey, cfg.MediaServerUserID)

	var mapper sidecar.PathMapper
	if jfPrefix, localPrefix, ok := cfg.PathMapRule(); ok {
		mapper = sidecar.PathMapper{JFPrefix: jfPrefix, LocalPrefix: localPrefix}
	}

	sched := scheduler.New(st, func(ctx context.Context, channelID int64) ([]pool.Candidate, error) {
		return pool.Build(ctx, st, jf, channelID)
	}, mapper)

	proxy := stream.New(st, jf, cfg.PreferredAudioLanguage)
	if cfg.FFmpegPath != "" {
		proxy.FFmpegPath = cfg.FFmpegPath
	}
	proxy.GapPollInterval = cfg.GapPollInterval

	m := maintainer.New(st, sched.Generate)
	m.LowWaterHours = cfg.SchedulerLowWaterHours
	m.ExtendDays = cfg.SchedulerExtendDays

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Run(ctx)

	// RegisterLiveTV is the out-of-core external-server collaborator
	// (spec.md §1 "the CRUD HTTP surface ... out of scope"); no registrar
	// is wired here, so register-livetv responds 502 until the surrounding
	// CRUD service supplies one.
	api := httpapi.New(st, sched, proxy, nil, cfg.PublicURL)

	mux := http.NewServeMux()
	api.Routes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := health.CheckStore(r.Context(), st); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Printf("jellystreamd: listening on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("jellystreamd: http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("jellystreamd: shutting down")

	cancel() // stop the maintainer and cancel in-flight stream connections

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("jellystreamd: shutdown: %v", err)
	}
}
