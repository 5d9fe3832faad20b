package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls map[models.Period]int
	err   error
}

func (p *fakeProvider) Current(_ context.Context, period models.Period) (*models.Dashboard, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[models.Period]int)
	}
	p.calls[period]++
	if p.err != nil {
		return nil, p.err
	}
	return &models.Dashboard{Period: period}, nil
}

type countingObserver struct {
	mu           sync.Mutex
	connected    int
	disconnected int
}

func (o *countingObserver) WebsocketConnected() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connected++
}

func (o *countingObserver) WebsocketDisconnected() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnected++
}

func (o *countingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connected, o.disconnected
}

func startHub(t *testing.T, provider service.DashboardProvider, observer ConnectionObserver) (*Hub, string) {
	t.Helper()
	h := NewHub(provider, observer, func(*http.Request) bool { return true })

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_PushesInitialDashboardForRequestedPeriod(t *testing.T) {
	_, url := startHub(t, &fakeProvider{}, nil)

	conn := dial(t, url+"?period=1w")
	msg := readMessage(t, conn)

	assert.Equal(t, MessageTypeDashboard, msg.Type)
	require.NotNil(t, msg.Dashboard)
	assert.Equal(t, models.PeriodWeek, msg.Dashboard.Period)
}

func TestHub_BroadcastsOnChange(t *testing.T) {
	provider := &fakeProvider{}
	h, url := startHub(t, provider, nil)

	week := dial(t, url+"?period=1w")
	all := dial(t, url)
	readMessage(t, week)
	readMessage(t, all)

	h.OnChange(service.ChangeSourceBets)

	assert.Equal(t, models.PeriodWeek, readMessage(t, week).Dashboard.Period)
	assert.Equal(t, models.PeriodAll, readMessage(t, all).Dashboard.Period)
}

func TestHub_SubscribeSwitchesPeriod(t *testing.T) {
	_, url := startHub(t, &fakeProvider{}, nil)

	conn := dial(t, url)
	assert.Equal(t, models.PeriodAll, readMessage(t, conn).Dashboard.Period)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, Period: "1d"}))
	assert.Equal(t, models.PeriodDay, readMessage(t, conn).Dashboard.Period)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, Period: "2y"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, msg.Error, "2y")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeHeartbeat}))
	assert.Equal(t, MessageTypeHeartbeat, readMessage(t, conn).Type)
}

func TestHub_ProviderFailureSendsError(t *testing.T) {
	_, url := startHub(t, &fakeProvider{err: errors.New("store down")}, nil)

	conn := dial(t, url)
	msg := readMessage(t, conn)

	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Nil(t, msg.Dashboard)
}

func TestHub_RejectsUnknownPeriod(t *testing.T) {
	_, url := startHub(t, &fakeProvider{}, nil)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?period=forever", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHub_TracksConnections(t *testing.T) {
	observer := &countingObserver{}
	h, url := startHub(t, &fakeProvider{}, observer)

	conn := dial(t, url)
	readMessage(t, conn)
	assert.Equal(t, 1, h.ClientCount())

	conn.Close()

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 5*time.Second, 20*time.Millisecond)
	connected, disconnected := observer.counts()
	assert.Equal(t, 1, connected)
	assert.Equal(t, 1, disconnected)
}

// gatedProvider holds requests for one period until release is closed
type gatedProvider struct {
	fakeProvider
	gated   models.Period
	entered chan struct{}
	release chan struct{}
}

func newGatedProvider(gated models.Period) *gatedProvider {
	return &gatedProvider{gated: gated, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (p *gatedProvider) Current(ctx context.Context, period models.Period) (*models.Dashboard, error) {
	if period == p.gated {
		select {
		case p.entered <- struct{}{}:
		default:
		}
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.fakeProvider.Current(ctx, period)
}

func TestHub_SlowInitialDashboardDoesNotStallOtherClients(t *testing.T) {
	provider := newGatedProvider(models.PeriodDay)
	h, url := startHub(t, provider, nil)

	all := dial(t, url)
	assert.Equal(t, models.PeriodAll, readMessage(t, all).Dashboard.Period)

	day := dial(t, url+"?period=1d")
	waitEntered(t, provider)

	h.OnChange(service.ChangeSourceBets)
	assert.Equal(t, models.PeriodAll, readMessage(t, all).Dashboard.Period)

	close(provider.release)
	msg := readMessage(t, day)
	require.Equal(t, MessageTypeDashboard, msg.Type)
	assert.Equal(t, models.PeriodDay, msg.Dashboard.Period)
}

func TestHub_SlowSubscribeDoesNotStallBroadcasts(t *testing.T) {
	provider := newGatedProvider(models.PeriodMonth)
	h, url := startHub(t, provider, nil)

	switching := dial(t, url)
	other := dial(t, url+"?period=1w")
	readMessage(t, switching)
	readMessage(t, other)

	require.NoError(t, switching.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, Period: "1m"}))
	waitEntered(t, provider)

	h.OnChange(service.ChangeSourceAccount)
	assert.Equal(t, models.PeriodWeek, readMessage(t, other).Dashboard.Period)

	// The broadcast still used the old period; the month dashboard follows it
	assert.Equal(t, models.PeriodAll, readMessage(t, switching).Dashboard.Period)

	close(provider.release)
	assert.Equal(t, models.PeriodMonth, readMessage(t, switching).Dashboard.Period)
}

func waitEntered(t *testing.T, p *gatedProvider) {
	t.Helper()
	select {
	case <-p.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("provider was never asked for the gated period")
	}
}
