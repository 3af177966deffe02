// Package logging provides structured logging for repoindexer.
//
// # Overview
//
// The package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Stderr output, optionally teed to an OpenTelemetry log provider
//   - Automatic context field injection (trace_id, run, account, repository)
//   - Encoder-level secret redaction
//   - Sampling below Error (errors never sampled)
//
// Stdout is reserved for the run report, so log lines always go to stderr.
//
// # Usage
//
//	cfg := logging.FromAppConfig(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithAccount(ctx, "octocat")
//	ctx = logging.WithRepository(ctx, "octocat/hello-world")
//	logger.Info(ctx, "file indexed", zap.String("path", "main.py"))
//
// Output includes the correlation fields:
//
//	{
//	  "ts": "2026-10-18T10:15:30Z",
//	  "level": "info",
//	  "msg": "file indexed",
//	  "run.id": "3f2a...",
//	  "account": "octocat",
//	  "repository": "octocat/hello-world",
//	  "path": "main.py"
//	}
//
// # Secret Redaction
//
// Hosting tokens travel as config.Secret and are never printed. The encoder
// additionally redacts sensitive field names and token-shaped values.
//
//	logger.Debug(ctx, "client configured", logging.Secret("token", cfg.Hosting.Token))
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
//	tl.AssertNoSecrets(t)
//
// Logger is safe for concurrent use. Child loggers (With, Named) do not
// affect their parent.
package logging
