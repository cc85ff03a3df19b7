// Command delegate drives the asynchronous delegate runtime.
//
//	delegate demo                      # run the end-to-end scenarios on real workers
//	delegate serve                     # /metrics, /healthz, /remote + transport dispatcher
//	delegate remote:listen --id alarm  # print remote calls received for an id
//	delegate remote:send --id alarm '{"code":7}'
//	delegate deadletter:list --limit 20
//
// Configuration comes from config/app.json, config/app.yaml, .env and the
// process environment (see package config).
package main
