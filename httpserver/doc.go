/*
Package httpserver exposes the progress of a run over HTTP.

The server is optional and only started when a status address is given. It
is meant for operators and orchestrators watching a long run, for example a
deploy followed by commit and reveal with polling confirmation.

# Endpoints

  - GET /status  - current phase, run id, driver state and the last report
  - GET /livez   - liveness probe, always 200 while the process runs
  - GET /readyz  - 200 once the identity is registered and the RPC client
    dialed, 503 before that or while draining
  - GET /drain, /undrain - toggle readiness by hand
  - /debug/pprof - profiling, when EnablePprof is set

Requests are logged through the flashbots httplogger middleware.

# Example Usage

	handler := httpserver.NewHandler(run, logger)
	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               ":8080",
		Log:                      logger,
		GracefulShutdownDuration: 5 * time.Second,
	}, handler)
	if err != nil {
		return err
	}
	srv.RunInBackground()
	defer srv.Shutdown()
*/
package httpserver
