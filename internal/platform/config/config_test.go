package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("OUTBOX_BATCH_SIZE", "")
	t.Setenv("ENABLE_OUTBOX_RELAY", "")
	t.Setenv("AUTO_MIGRATE_SCHEMAS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServiceName != "grantpool" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default port, got %q", cfg.HTTPPort)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "localhost:9092" {
		t.Fatalf("expected default broker, got %v", cfg.KafkaBrokers)
	}
	if cfg.OutboxBatchSize != 100 {
		t.Fatalf("expected default batch size 100, got %d", cfg.OutboxBatchSize)
	}
	if !cfg.EnableOutboxRelay {
		t.Fatal("expected relay enabled by default")
	}
	if cfg.AutoMigrateSchemas {
		t.Fatal("expected auto-migrate disabled by default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SERVICE_NAME", "grantpool-staging")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("OUTBOX_BATCH_SIZE", "25")
	t.Setenv("ENABLE_OUTBOX_RELAY", "off")
	t.Setenv("AUTO_MIGRATE_SCHEMAS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServiceName != "grantpool-staging" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.OutboxBatchSize != 25 {
		t.Fatalf("unexpected batch size %d", cfg.OutboxBatchSize)
	}
	if cfg.EnableOutboxRelay {
		t.Fatal("expected relay disabled")
	}
	if !cfg.AutoMigrateSchemas {
		t.Fatal("expected auto-migrate enabled")
	}
}

func TestEnvIntRejectsMalformedValues(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "10x")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.OutboxBatchSize != 100 {
		t.Fatalf("expected fallback batch size 100, got %d", cfg.OutboxBatchSize)
	}
}
