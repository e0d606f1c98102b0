package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("POSTING_MAX_ATTEMPTS", "zero")
	t.Setenv("POSTING_RETRY_BASE_MS", "-5")
	t.Setenv("LOCK_TTL_SECONDS", "")
	t.Setenv("COMPANY_STATE_CODE", "")

	cfg := Load()
	if cfg.PostingMaxAttempts != 4 {
		t.Fatalf("expected default attempts 4, got %d", cfg.PostingMaxAttempts)
	}
	if cfg.RetryBase() != 25*time.Millisecond {
		t.Fatalf("expected default retry base 25ms, got %s", cfg.RetryBase())
	}
	if cfg.LockTTL() != 10*time.Second {
		t.Fatalf("expected default lock ttl 10s, got %s", cfg.LockTTL())
	}
	if cfg.CompanyStateCode != "27" {
		t.Fatalf("expected default state code 27, got %q", cfg.CompanyStateCode)
	}
}

func TestLoadSplitsKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "kafka-1:9092" || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaTopic != "pharma.postings" {
		t.Fatalf("expected default topic, got %q", cfg.KafkaTopic)
	}
}

func TestNewLoggerParsesLevelAndFormat(t *testing.T) {
	log := NewLogger("debug", "text")
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", log.Formatter)
	}

	log = NewLogger("loud", "json")
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", log.Formatter)
	}
}
