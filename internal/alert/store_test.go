// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package alert

import (
	"sync"
	"testing"
	"time"
)

func storedAlert(id string, createdAt time.Time) *SafetyAlert {
	return &SafetyAlert{
		ID:        id,
		EventID:   "ev-" + id,
		Priority:  PriorityUrgent,
		CreatedAt: createdAt,
	}
}

func TestAcknowledgeIdempotent(t *testing.T) {
	s := NewStore(0)
	s.Save(storedAlert("a-1", time.Now()))

	first, err := s.Acknowledge("a-1", "operator")
	if err != nil || !first {
		t.Fatalf("first acknowledge = (%v, %v), want (true, nil)", first, err)
	}

	second, err := s.Acknowledge("a-1", "operator")
	if err != nil || second {
		t.Fatalf("second acknowledge = (%v, %v), want (false, nil)", second, err)
	}

	a, _ := s.Get("a-1")
	if !a.Acknowledged || a.AcknowledgedBy != "operator" || a.AcknowledgedAt == nil {
		t.Error("expected acknowledgment fields to be set once")
	}
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	s := NewStore(0)
	if _, err := s.Acknowledge("missing", "x"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAcknowledgeConcurrentSingleWinner(t *testing.T) {
	s := NewStore(0)
	s.Save(storedAlert("a-1", time.Now()))

	var wg sync.WaitGroup
	wins := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Acknowledge("a-1", "racer")
			if err != nil {
				t.Errorf("Acknowledge: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for ok := range wins {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestActiveExcludesAcknowledged(t *testing.T) {
	s := NewStore(0)
	now := time.Now()
	s.Save(storedAlert("a-1", now.Add(-2*time.Minute)))
	s.Save(storedAlert("a-2", now.Add(-time.Minute)))
	s.Save(storedAlert("a-3", now))

	if _, err := s.Acknowledge("a-2", "op"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	active := s.Active()
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}
	if active[0].ID != "a-3" || active[1].ID != "a-1" {
		t.Errorf("expected newest-first [a-3 a-1], got [%s %s]", active[0].ID, active[1].ID)
	}
}

func TestAppendAttempts(t *testing.T) {
	s := NewStore(0)
	s.Save(storedAlert("a-1", time.Now()))

	err := s.AppendAttempts("a-1", []DeliveryAttempt{
		{Channel: ChannelSMS, Success: true, LatencyMs: 12},
		{Channel: ChannelCall, Success: false, Error: "timeout"},
	})
	if err != nil {
		t.Fatalf("AppendAttempts: %v", err)
	}

	a, _ := s.Get("a-1")
	if len(a.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(a.Attempts))
	}

	if err := s.AppendAttempts("missing", nil); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreGCByTTL(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(24 * time.Hour)
	s.now = func() time.Time { return now }

	s.Save(storedAlert("keep", now.Add(-23*time.Hour)))
	s.Save(storedAlert("drop", now.Add(-25*time.Hour)))

	if removed := s.gc(); removed != 1 {
		t.Errorf("gc removed %d, want 1", removed)
	}
	if _, err := s.Get("drop"); err != ErrNotFound {
		t.Error("expected expired alert to be removed")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
