package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	cfgPath := writeConfig(t, `db_path: ~/.kwgraph/from-config.db
backend: nats
namespace: from-config
nats:
  url: nats://config:4222
http:
  port: "9000"
viewport:
  width: "1200"
`)

	t.Setenv("KWGRAPH_DB", "~/from-env.db")
	t.Setenv("KWGRAPH_NAMESPACE", "from-env")
	t.Setenv("KWGRAPH_HTTP_PORT", "9100")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: cfgPath,
		CLIDBPath:  "~/from-cli.db",
		CLIPort:    "9200",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.DBPath.Source != SourceCLI {
		t.Fatalf("expected DB path source cli, got %s", resolved.DBPath.Source)
	}
	if strings.HasPrefix(resolved.DBPath.Value, "~") {
		t.Fatalf("expected expanded DB path, got %q", resolved.DBPath.Value)
	}
	if resolved.Namespace.Value != "from-env" || resolved.Namespace.Source != SourceEnv {
		t.Fatalf("expected namespace from env, got %+v", resolved.Namespace)
	}
	if resolved.Backend.Value != BackendNATS || resolved.Backend.Source != SourceConfig {
		t.Fatalf("expected backend from config, got %+v", resolved.Backend)
	}
	if resolved.HTTPPort.Int(0) != 9200 {
		t.Fatalf("expected CLI port, got %+v", resolved.HTTPPort)
	}
	if resolved.ViewportWidth.Int(0) != 1200 || resolved.ViewportHeight.Int(0) != DefaultHeight {
		t.Fatalf("unexpected viewport %+v x %+v", resolved.ViewportWidth, resolved.ViewportHeight)
	}
	if resolved.NATSBucket.Source != SourceDefault {
		t.Fatalf("expected default bucket, got %+v", resolved.NATSBucket)
	}
}

func TestResolveConfig_MissingFileUsesDefaults(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if resolved.Backend.Value != DefaultBackend || resolved.Backend.Source != SourceDefault {
		t.Fatalf("unexpected backend %+v", resolved.Backend)
	}
	if resolved.PollInterval.Duration(0) != DefaultPoll {
		t.Fatalf("unexpected poll interval %+v", resolved.PollInterval)
	}
	if resolved.NATSURL.Value != DefaultNATSURL {
		t.Fatalf("unexpected nats url %+v", resolved.NATSURL)
	}
}

func TestResolveConfig_NATSURLEnvOrder(t *testing.T) {
	t.Setenv("NATS_URL", "nats://generic:4222")
	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if resolved.NATSURL.From != "NATS_URL" {
		t.Fatalf("expected NATS_URL, got %+v", resolved.NATSURL)
	}

	t.Setenv("KWGRAPH_NATS_URL", "nats://specific:4222")
	resolved, err = ResolveConfig(ResolveOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if resolved.NATSURL.Value != "nats://specific:4222" {
		t.Fatalf("expected KWGRAPH_NATS_URL to win, got %+v", resolved.NATSURL)
	}
}

func TestResolveConfig_Invalid(t *testing.T) {
	cases := map[string]ResolveOptions{
		"backend":   {CLIBackend: "redis"},
		"port":      {CLIPort: "99999"},
		"log level": {CLILogLevel: "loud"},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			opts.ConfigPath = filepath.Join(t.TempDir(), "absent.yaml")
			if _, err := ResolveConfig(opts); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	bad := writeConfig(t, "backend: [\n")
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: bad}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolvedValueParsers(t *testing.T) {
	v := ResolvedValue{Value: "nope"}
	if v.Int(7) != 7 || v.Float(1.5) != 1.5 || v.Duration(time.Second) != time.Second {
		t.Fatal("malformed values should fall back")
	}
	if (ResolvedValue{Value: " -200 "}).Float(0) != -200 {
		t.Fatal("expected -200")
	}
	if (ResolvedValue{Value: "250ms"}).Duration(0) != 250*time.Millisecond {
		t.Fatal("expected 250ms")
	}
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("DEBUG")
	if err != nil || level != slog.LevelDebug {
		t.Fatalf("got %v, %v", level, err)
	}
}
