package gateway

import (
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/protocol"
)

func TestShutdownDrain(t *testing.T) {
	g := newTestGateway(t)
	g.initialize(t)

	// A long-running stream that only ends when cancelled.
	g.backend.StreamChunks = []string{"one"}
	g.backend.BlockStream = true
	g.manager.Admit(g.session, request(t, `1`, protocol.MethodStream, `{"prompt":"x"}`))
	if got := g.sender.WaitForResponses(`1`, 1, testTimeout); len(got) != 1 {
		t.Fatalf("stream never started: %d responses", len(got))
	}

	g.coord.Trigger("test")

	select {
	case <-g.coord.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	if g.coord.Phase() != PhaseTerminated {
		t.Errorf("phase = %v, want terminated", g.coord.Phase())
	}
	if g.registry.Len() != 0 {
		t.Errorf("registry still has %d sessions", g.registry.Len())
	}

	// The in-flight stream was cancelled and resolved before the close.
	terminal := g.sender.WaitForTerminal(`1`, time.Second)
	wantError(t, terminal, protocol.CodeRequestCancelled)

	// Clients were told the gateway is going away.
	notified := false
	for _, n := range g.sender.Notifications() {
		if n.Method == protocol.MethodShutdown {
			notified = true
		}
	}
	if !notified {
		t.Error("shutdown notification not broadcast")
	}
}

func TestAdmitRefusedWhileDraining(t *testing.T) {
	g := newTestGateway(t)
	g.initialize(t)

	// A handle that ignores cancellation keeps the connection in its drain
	// grace window, so the late request races nothing.
	if _, errObj := g.session.register("stuck", func() {}); errObj != nil {
		t.Fatalf("register failed: %v", errObj)
	}
	g.coord.Trigger("test")

	g.manager.Admit(g.session, request(t, `9`, protocol.MethodGenerate, `{"prompt":"late"}`))
	wantError(t, g.sender.WaitForTerminal(`9`, testTimeout), protocol.CodeShuttingDown)

	<-g.coord.Done()
}

func TestShutdownRequestAcknowledgedThenDrains(t *testing.T) {
	g := newTestGateway(t)
	g.initialize(t)

	g.manager.Admit(g.session, request(t, `5`, protocol.MethodShutdown, ""))

	resp := g.sender.WaitForTerminal(`5`, testTimeout)
	if resp == nil || resp.Error != nil {
		t.Fatalf("shutdown request not acknowledged: %+v", resp)
	}

	select {
	case <-g.coord.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown request did not drive the coordinator to completion")
	}
}

func TestTriggerIsIdempotent(t *testing.T) {
	g := newTestGateway(t)

	g.coord.Trigger("first")
	g.coord.Trigger("second")
	g.coord.Trigger("third")

	select {
	case <-g.coord.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	if g.coord.Phase() != PhaseTerminated {
		t.Errorf("phase = %v", g.coord.Phase())
	}
}

func TestExitNotificationRemovesConnection(t *testing.T) {
	g := newTestGateway(t)
	g.initialize(t)

	g.manager.Admit(g.session, notification(t, protocol.MethodExit))

	if g.registry.Len() != 0 {
		t.Errorf("registry len = %d after exit", g.registry.Len())
	}
	if !g.sender.Closed() {
		t.Error("transport not closed after exit")
	}
}

func TestShutdownNotificationTriggersDrain(t *testing.T) {
	g := newTestGateway(t)
	g.initialize(t)

	g.manager.Admit(g.session, notification(t, protocol.MethodShutdown))

	if !g.coord.Draining() {
		t.Error("shutdown notification did not begin draining")
	}
	<-g.coord.Done()
}

func TestShutdownForceClosesAfterGrace(t *testing.T) {
	g := newTestGateway(t)
	g.initialize(t)

	// Register a handle whose owner ignores cancellation, so the drain grace
	// must expire and the coordinator must force close.
	if _, errObj := g.session.register("stuck", func() {}); errObj != nil {
		t.Fatalf("register failed: %v", errObj)
	}

	start := time.Now()
	g.coord.Trigger("test")

	select {
	case <-g.coord.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator wedged on an unresolvable request")
	}

	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("shutdown finished in %v, before the drain grace", elapsed)
	}
	if g.registry.Len() != 0 {
		t.Errorf("registry len = %d", g.registry.Len())
	}
}
