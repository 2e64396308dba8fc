// Command keyd is the process entrypoint: parses flags, loads the
// snapshot, starts the TCP server, and — when run with --replicaof —
// launches the replica-side handshake and apply loop.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/OneOfOne/xxhash"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ais-project/keyd/cmn"
	"github.com/ais-project/keyd/cmn/cos"
	"github.com/ais-project/keyd/cmn/nlog"
	"github.com/ais-project/keyd/repl"
	"github.com/ais-project/keyd/server"
	"github.com/ais-project/keyd/snapshot"
)

func main() {
	cfg, err := cmn.ParseFlags(os.Args[1:])
	if err != nil {
		cos.Exitf("parsing flags: %v", err)
	}

	replState := repl.NewMaster()
	if cfg.IsReplica {
		replState = repl.NewSlave()
	}
	coord := server.NewCoordinator(cfg, replState)

	loadSnapshot(cfg, coord)

	if cfg.MetricsAddr != "" {
		startMetrics(cfg.MetricsAddr, coord)
	}

	if cfg.IsReplica {
		client := repl.NewReplicaClient(cfg.ReplicaOfHost, cfg.ReplicaOfPort, cfg.Port, coord.Repl)
		go client.Run(coord)
	}

	if err := server.ListenAndServe(cfg.Port, coord); err != nil {
		cos.Exitf("bind :%d: %v", cfg.Port, err)
	}
}

func loadSnapshot(cfg *cmn.Config, coord *server.Coordinator) {
	path := filepath.Join(cfg.Dir, cfg.DBFilename)
	loader := snapshot.NoopLoader{}
	if err := loader.Load(path, coord.Keyspace()); err != nil {
		nlog.Warningf("snapshot: failed to load %s: %v", path, err)
		return
	}
	data, _ := os.ReadFile(path) // nil when the file is absent
	digest := xxhash.Checksum64(data)
	nlog.Infof("snapshot: loaded %s, digest=%x, %d keys", path, digest, len(coord.Keyspace().Keys()))
}

func startMetrics(addr string, coord *server.Coordinator) {
	reg := prometheus.NewRegistry()
	coord.Metrics.Register(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			nlog.Warningf("metrics: listener on %s stopped: %v", addr, err)
		}
	}()
	nlog.Infof("metrics: serving /metrics on %s", addr)
}
