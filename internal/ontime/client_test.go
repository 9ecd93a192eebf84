package ontime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagekit/ontime-bridge/internal/host"
)

// fakeSink implements host.Sink, recording every call for assertions.
type fakeSink struct {
	mu        sync.Mutex
	statuses  []host.Status
	details   []string
	vars      []map[string]string
	feedbacks [][]string

	statusCh chan host.Status
	varsCh   chan map[string]string
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		statusCh: make(chan host.Status, 32),
		varsCh:   make(chan map[string]string, 32),
	}
}

func (f *fakeSink) UpdateStatus(status host.Status, detail string) {
	f.mu.Lock()
	f.statuses = append(f.statuses, status)
	f.details = append(f.details, detail)
	f.mu.Unlock()
	select {
	case f.statusCh <- status:
	default:
	}
}

func (f *fakeSink) SetVariableValues(values map[string]string) {
	f.mu.Lock()
	f.vars = append(f.vars, values)
	f.mu.Unlock()
	select {
	case f.varsCh <- values:
	default:
	}
}

func (f *fakeSink) CheckFeedbacks(names ...string) {
	f.mu.Lock()
	f.feedbacks = append(f.feedbacks, names)
	f.mu.Unlock()
}

func (f *fakeSink) lastStatus() host.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}

func (f *fakeSink) varCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vars)
}

func (f *fakeSink) feedbackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feedbacks)
}

func (f *fakeSink) waitStatus(t *testing.T, want host.Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.statusCh:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q (last %q)", want, f.lastStatus())
		}
	}
}

func (f *fakeSink) waitVars(t *testing.T) map[string]string {
	t.Helper()
	select {
	case vars := <-f.varsCh:
		return vars
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for variable update")
		return nil
	}
}

// testDevice is a fake ontime server exposing the /ws socket and the
// /events HTTP endpoint.
type testDevice struct {
	srv      *httptest.Server
	upgrader ws.Upgrader

	mu           sync.Mutex
	dials        int
	eventsBody   string
	eventsStatus int

	connCh chan *ws.Conn
}

func newTestDevice(t *testing.T) *testDevice {
	t.Helper()
	d := &testDevice{
		eventsBody:   "[]",
		eventsStatus: http.StatusOK,
		connCh:       make(chan *ws.Conn, 8),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := d.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		d.mu.Lock()
		d.dials++
		d.mu.Unlock()
		d.connCh <- conn
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		status, body := d.eventsStatus, d.eventsBody
		d.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body)) //nolint:errcheck
	})

	d.srv = httptest.NewServer(mux)
	t.Cleanup(d.srv.Close)
	return d
}

func (d *testDevice) hostPort(t *testing.T) (string, int) {
	t.Helper()
	u, err := url.Parse(d.srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func (d *testDevice) setEvents(status int, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventsStatus = status
	d.eventsBody = body
}

func (d *testDevice) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// waitConn returns the next server-side connection the device accepted.
func (d *testDevice) waitConn(t *testing.T) *ws.Conn {
	t.Helper()
	select {
	case conn := <-d.connCh:
		t.Cleanup(func() { conn.Close() }) //nolint:errcheck
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for device-side connection")
		return nil
	}
}

func newTestClient(t *testing.T, d *testDevice, opts ...Option) (*Client, *fakeSink) {
	t.Helper()
	h, port := d.hostPort(t)
	sink := newFakeSink()
	c := NewClient(Config{
		Host:              h,
		Port:              port,
		ReconnectInterval: 50 * time.Millisecond,
	}, sink, opts...)
	t.Cleanup(c.Disconnect)
	return c, sink
}

func sendFrame(t *testing.T, conn *ws.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(frame)))
}

func TestConnect_BadConfig(t *testing.T) {
	sink := newFakeSink()

	c := NewClient(Config{}, sink)
	err := c.Connect(context.Background())
	require.ErrorIs(t, err, ErrBadConfig)
	assert.Equal(t, host.StatusBadConfig, sink.lastStatus())

	c = NewClient(Config{Host: "device.local"}, sink)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrBadConfig)
}

func TestConnect_ReportsOK(t *testing.T) {
	d := newTestDevice(t)
	c, sink := newTestClient(t, d)

	require.NoError(t, c.Connect(context.Background()))
	d.waitConn(t)

	assert.True(t, c.Connected())
	assert.Equal(t, host.StatusOK, sink.lastStatus())
}

func TestConnect_StripsSchemeFromHost(t *testing.T) {
	d := newTestDevice(t)
	h, port := d.hostPort(t)

	sink := newFakeSink()
	c := NewClient(Config{Host: "https://" + h, Port: port}, sink)
	t.Cleanup(c.Disconnect)

	require.NoError(t, c.Connect(context.Background()))
	d.waitConn(t)
	assert.True(t, c.Connected())
}

func TestConnectTwice_ClosesFirstSocket(t *testing.T) {
	d := newTestDevice(t)
	c, _ := newTestClient(t, d)

	require.NoError(t, c.Connect(context.Background()))
	first := d.waitConn(t)

	require.NoError(t, c.Connect(context.Background()))
	d.waitConn(t)

	assert.Equal(t, 2, d.dialCount())
	assert.True(t, c.Connected())

	// The first server-side socket must observe the close.
	first.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := first.ReadMessage()
	assert.Error(t, err, "first socket should be closed by the second connect")
}

func TestStateMessage_PublishesVariablesAndFeedbacks(t *testing.T) {
	d := newTestDevice(t)
	c, sink := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)

	sendFrame(t, conn, `{"type":"ontime","payload":{
		"timer":{"current":-500,"clock":38700000,"addedTime":60000},
		"playback":"start","onAir":true,
		"titles":{"titleNow":"Opening"},
		"timerMessage":{"text":"wrap up","active":true}
	}}`)

	vars := sink.waitVars(t)
	assert.Equal(t, "-00:00:00", vars["time"])
	assert.Equal(t, "true", vars["negative"])
	assert.Equal(t, "10:45:00", vars["clock"])
	assert.Equal(t, "00:01:00", vars["timer_delay"])
	assert.Equal(t, "Opening", vars["title"])
	assert.Equal(t, "wrap up", vars["speaker_message"])

	require.NotNil(t, c.State())
	assert.True(t, c.State().TimeIsNegative())
	assert.Eventually(t, func() bool { return sink.feedbackCount() == 1 },
		2*time.Second, 10*time.Millisecond, "snapshot should trigger one feedback re-evaluation")
}

func TestStateMessage_NonNegativeTimer(t *testing.T) {
	d := newTestDevice(t)
	c, sink := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)

	sendFrame(t, conn, `{"type":"ontime","payload":{"timer":{"current":90000,"clock":0,"addedTime":0},"playback":"pause"}}`)

	vars := sink.waitVars(t)
	assert.Equal(t, "00:01:30", vars["time"])
	assert.Equal(t, "false", vars["negative"])
	assert.False(t, c.State().TimeIsNegative())
}

func TestUnknownType_ProducesNoUpdates(t *testing.T) {
	d := newTestDevice(t)
	c, sink := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)

	sendFrame(t, conn, `{"type":"something-else","payload":{"timer":{"current":1}}}`)
	sendFrame(t, conn, `{"payload":{}}`)

	// A subsequent valid snapshot proves both frames above were processed
	// and dropped: dispatch is sequential on the read loop.
	sendFrame(t, conn, `{"type":"ontime","payload":{"timer":{"current":1000,"clock":0,"addedTime":0}}}`)
	sink.waitVars(t)

	assert.Equal(t, 1, sink.varCount())
	assert.Eventually(t, func() bool { return sink.feedbackCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestMalformedFrame_IgnoredWithoutStateChange(t *testing.T) {
	d := newTestDevice(t)
	c, sink := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)

	sendFrame(t, conn, `this is not json`)
	sendFrame(t, conn, `{"type":"ontime","payload":"not an object"}`)

	sendFrame(t, conn, `{"type":"ontime","payload":{"timer":{"current":5000,"clock":0,"addedTime":0}}}`)
	vars := sink.waitVars(t)

	assert.Equal(t, "00:00:05", vars["time"])
	assert.Equal(t, 1, sink.varCount(), "malformed frames must not publish variables")
	require.NotNil(t, c.State())
	assert.EqualValues(t, 5000, *c.State().Timer.Current)
}

func TestReconnect_AfterConnectionLoss(t *testing.T) {
	d := newTestDevice(t)
	c, sink := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	first := d.waitConn(t)

	first.Close() //nolint:errcheck
	sink.waitStatus(t, host.StatusDisconnected)

	// Fixed-interval policy redials on its own.
	d.waitConn(t)
	sink.waitStatus(t, host.StatusOK)
	assert.Equal(t, 2, d.dialCount())
	assert.True(t, c.Connected())
}

func TestDisconnect_SuppressesReconnect(t *testing.T) {
	d := newTestDevice(t)
	c, _ := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	d.waitConn(t)

	c.Disconnect()
	assert.False(t, c.Connected())

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount(), "no reconnect after explicit disconnect")
}

func TestDisconnect_BeforePendingTimerFires(t *testing.T) {
	d := newTestDevice(t)
	h, port := d.hostPort(t)
	sink := newFakeSink()
	c := NewClient(Config{Host: h, Port: port, ReconnectInterval: 500 * time.Millisecond}, sink)
	t.Cleanup(c.Disconnect)

	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)

	conn.Close() //nolint:errcheck
	sink.waitStatus(t, host.StatusDisconnected)

	// The reconnect timer is pending now; disabling must cancel it.
	c.Disconnect()
	time.Sleep(700 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount(), "cancelled timer must not redial")
}

func TestDisconnect_Idempotent(t *testing.T) {
	d := newTestDevice(t)
	c, _ := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	d.waitConn(t)

	c.Disconnect()
	c.Disconnect()
	assert.False(t, c.Connected())
}

func TestSendRaw_NoSocketIsNoOp(t *testing.T) {
	sink := newFakeSink()
	c := NewClient(Config{Host: "device.local", Port: 4001}, sink)

	// Never connected: must not panic or call the sink.
	c.SendRaw("hello")
	c.SendJSON("set-start", nil)
	assert.Zero(t, sink.varCount())
}

func TestSendJSON_WritesEnvelope(t *testing.T) {
	d := newTestDevice(t)
	c, _ := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)

	c.SendJSON("set-start", nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"set-start"}`, string(data))
}

func TestCommands_CarryPayloads(t *testing.T) {
	d := newTestDevice(t)
	c, _ := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck

	c.StartEvent("abc123")
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"set-startid","payload":"abc123"}`, string(data))

	c.AddDelay(5)
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"set-delay","payload":5}`, string(data))

	c.ShowSpeakerMessage(true)
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"set-timer-message-visible","payload":true}`, string(data))
}

func TestRefetch_PopulatesEventDirectory(t *testing.T) {
	d := newTestDevice(t)
	d.setEvents(http.StatusOK, `[{"id":"1","title":"Open"},{"id":"2","title":"Keynote"}]`)

	refreshed := make(chan []Event, 1)
	c, _ := newTestClient(t, d, WithEventsRefreshed(func(events []Event) {
		refreshed <- events
	}))
	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)

	assert.Empty(t, c.Events(), "directory starts empty")
	sendFrame(t, conn, `{"type":"ontime-refetch"}`)

	select {
	case events := <-refreshed:
		assert.Equal(t, []Event{{ID: "1", Label: "Open"}, {ID: "2", Label: "Keynote"}}, events)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events refresh hook")
	}
	assert.Equal(t, []Event{{ID: "1", Label: "Open"}, {ID: "2", Label: "Keynote"}}, c.Events())
}

func TestRefetch_FetchFailureLeavesDirectoryEmpty(t *testing.T) {
	d := newTestDevice(t)
	d.setEvents(http.StatusInternalServerError, "")

	c, sink := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)

	sendFrame(t, conn, `{"type":"ontime-refetch"}`)

	// A trailing snapshot proves the refetch was fully processed first.
	sendFrame(t, conn, `{"type":"ontime","payload":{"timer":{"current":0,"clock":0,"addedTime":0}}}`)
	sink.waitVars(t)

	assert.Empty(t, c.Events())
}

func TestRefetch_ClearsPreviousDirectoryOnFailure(t *testing.T) {
	d := newTestDevice(t)
	d.setEvents(http.StatusOK, `[{"id":"1","title":"Open"}]`)

	c, sink := newTestClient(t, d)
	require.NoError(t, c.Connect(context.Background()))
	conn := d.waitConn(t)

	sendFrame(t, conn, `{"type":"ontime-refetch"}`)
	sendFrame(t, conn, `{"type":"ontime","payload":{"timer":{"current":0,"clock":0,"addedTime":0}}}`)
	sink.waitVars(t)
	require.Len(t, c.Events(), 1)

	d.setEvents(http.StatusBadGateway, "")

	sendFrame(t, conn, `{"type":"ontime-refetch"}`)
	sendFrame(t, conn, `{"type":"ontime","payload":{"timer":{"current":0,"clock":0,"addedTime":0}}}`)
	sink.waitVars(t)

	assert.Empty(t, c.Events(), "failed refetch leaves the directory cleared")
}
