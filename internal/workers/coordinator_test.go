package workers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-tracking/internal/carriers"
	"parcel-tracking/internal/email"
	"parcel-tracking/internal/parser"
	"parcel-tracking/internal/ratelimit"
)

func twoCarrierMailbox() *fakeMailbox {
	mailbox := newFakeMailbox()
	mailbox.add(1, plainMessage("dhl", "Sendung 222222222222 ist unterwegs"))
	mailbox.add(2, plainMessage("dhl", "Sendung 111111111111"))
	mailbox.add(3, plainMessage("myhermes", "Sendung H1234567890123456789 ist abholbereit"))
	mailbox.byCriteria = map[string][]uint32{
		`"dhl"`:      {1, 2},
		`"myhermes"`: {3},
	}
	return mailbox
}

func newTestCoordinator(mailbox *fakeMailbox, registry *carriers.Registry, factory *carriers.ClientFactory, config CoordinatorConfig) *Coordinator {
	if config.Carriers == nil {
		config.Carriers = []string{"DHL", "HERMES"}
	}
	if config.Folder == "" {
		config.Folder = "INBOX"
	}
	if registry == nil {
		registry = carriers.NewRegistry()
	}
	return NewCoordinator(config, newTestScanner(mailbox), registry, factory, nil)
}

func TestCoordinator_Run(t *testing.T) {
	mailbox := twoCarrierMailbox()
	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{})

	snapshot, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, snapshot.Success)
	assert.NotEmpty(t, snapshot.RunID)
	assert.Equal(t, 3, snapshot.Total)
	assert.Empty(t, snapshot.LastError)

	require.Len(t, snapshot.Records, 3)
	assert.Equal(t, "111111111111", snapshot.Records[0].TrackingNumber)
	assert.Equal(t, "222222222222", snapshot.Records[1].TrackingNumber)
	assert.Equal(t, "H1234567890123456789", snapshot.Records[2].TrackingNumber)

	assert.Equal(t, "https://www.dhl.de/de/privatkunden/pakete-empfangen/verfolgen.html?lang=de&idc=111111111111",
		snapshot.Records[0].ServiceURL)
	assert.Equal(t, parser.StatusInDelivery, snapshot.Records[1].StatusCode)
	assert.Equal(t, "HERMES", snapshot.Records[2].Carrier)
	assert.Equal(t, parser.StatusReadyForPickup, snapshot.Records[2].StatusCode)
	assert.Equal(t, "https://www.myhermes.de/empfangen/sendungsverfolgung/?suche=H1234567890123456789",
		snapshot.Records[2].ServiceURL)

	assert.Equal(t, snapshot, c.Snapshot())
}

func TestCoordinator_NoLinkWithoutTemplate(t *testing.T) {
	mailbox := newFakeMailbox()
	mailbox.add(1, plainMessage("amazon", "Ihre Sendung DE1234567890 ist unterwegs"))

	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{Carriers: []string{"AMAZON"}})
	snapshot, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Records, 1)
	assert.Equal(t, parser.NotAvailable, snapshot.Records[0].ServiceURL)
}

func TestCoordinator_SeenAcrossCarriers(t *testing.T) {
	mailbox := newFakeMailbox()
	mailbox.add(1, plainMessage("dpd", "Sendung 12345678901234 ist unterwegs"))
	mailbox.byCriteria = map[string][]uint32{`"dpd"`: {1}, `"myhermes"`: {1}}

	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{Carriers: []string{"DPD", "HERMES"}})
	snapshot, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Records, 1)
	assert.Equal(t, "DPD", snapshot.Records[0].Carrier)
	assert.Equal(t, 2, mailbox.connects)
}

func dhlServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("DHL-API-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		number := r.URL.Query().Get("trackingNumber")
		w.Header().Set("Content-Type", "application/json")
		switch number {
		case "111111111111":
			fmt.Fprintf(w, `{"shipments":[{"id":%q,"serviceUrl":"https://www.dhl.de/track?id=%s",
				"estimatedTimeOfDelivery":"2024-07-12T10:00:00+02:00","status":{"statusCode":"delivered"}}]}`, number, number)
		case "222222222222":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `{"shipments":[]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCoordinator_EnrichAll(t *testing.T) {
	var requests atomic.Int32
	srv := dhlServer(t, &requests)

	registry := carriers.NewRegistry()
	require.NoError(t, registry.Override(carriers.Rule{Key: "DHL", APIURL: srv.URL, APIKey: "test-key"}))

	mailbox := twoCarrierMailbox()
	factory := carriers.NewClientFactory(carriers.Config{Timeout: 5 * time.Second}, nil)
	c := newTestCoordinator(mailbox, registry, factory, CoordinatorConfig{EnrichAll: true, Concurrency: 2})

	snapshot, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Records, 3)

	delivered := snapshot.Records[0]
	assert.Equal(t, parser.StatusDelivered, delivered.StatusCode)
	assert.Equal(t, "12.07.2024", delivered.ETA)
	assert.Equal(t, "https://www.dhl.de/track?id=111111111111", delivered.ServiceURL)

	failed := snapshot.Records[1]
	assert.Equal(t, carriers.UnknownStatus, failed.StatusCode)
	assert.Equal(t, carriers.UnknownETA, failed.ETA)
	assert.Equal(t, "https://www.dhl.de/de/privatkunden/pakete-empfangen/verfolgen.html?lang=de&idc=222222222222",
		failed.ServiceURL)

	hermes := snapshot.Records[2]
	assert.Equal(t, parser.StatusReadyForPickup, hermes.StatusCode)

	assert.Equal(t, int32(2), requests.Load())
}

func TestCoordinator_EnrichDuringScan(t *testing.T) {
	var requests atomic.Int32
	srv := dhlServer(t, &requests)

	registry := carriers.NewRegistry()
	require.NoError(t, registry.Override(carriers.Rule{Key: "DHL", APIURL: srv.URL, APIKey: "test-key"}))

	factory := carriers.NewClientFactory(carriers.Config{}, nil)
	c := newTestCoordinator(twoCarrierMailbox(), registry, factory, CoordinatorConfig{EnrichAll: false})

	snapshot, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Records, 3)
	assert.Equal(t, parser.StatusDelivered, snapshot.Records[0].StatusCode)
	assert.Equal(t, int32(2), requests.Load())
}

func TestCoordinator_FailureKeepsPreviousRecords(t *testing.T) {
	mailbox := twoCarrierMailbox()
	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{})

	first, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Records, 3)

	mailbox.connectErr = errors.New("connection refused")
	second, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnect)

	assert.False(t, second.Success)
	assert.Contains(t, second.LastError, "connection refused")
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.LastUpdated, second.LastUpdated)

	mailbox.connectErr = nil
	third, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, third.Success)
	assert.Empty(t, third.LastError)
}

func TestCoordinator_PartialScanPublishesRecords(t *testing.T) {
	mailbox := twoCarrierMailbox()
	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{})

	first, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Records, 3)

	mailbox.fetchErrs[1] = email.ErrNotConnected
	snapshot, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialScan)
	assert.ErrorIs(t, err, email.ErrNotConnected)

	assert.False(t, snapshot.Success)
	assert.Contains(t, snapshot.LastError, "scan DHL")
	assert.NotEqual(t, first.RunID, snapshot.RunID)

	require.Len(t, snapshot.Records, 2)
	assert.Equal(t, "111111111111", snapshot.Records[0].TrackingNumber)
	assert.Equal(t, "H1234567890123456789", snapshot.Records[1].TrackingNumber)
	assert.Equal(t, 2, snapshot.Total)
	assert.Equal(t, snapshot, c.Snapshot())
	assert.Equal(t, 4, mailbox.logouts)
}

func TestCoordinator_SearchFailurePublishesEmptyList(t *testing.T) {
	mailbox := twoCarrierMailbox()
	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{})

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	mailbox.searchErr = errors.New("BAD search")
	snapshot, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrPartialScan)
	assert.False(t, snapshot.Success)
	assert.Empty(t, snapshot.Records)
	assert.Contains(t, snapshot.LastError, "BAD search")
	assert.Len(t, mailbox.criteria, 4)
}

func TestCoordinator_CancelledScanStopsRemainingCarriers(t *testing.T) {
	mailbox := twoCarrierMailbox()
	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snapshot, err := c.Run(ctx)
	assert.ErrorIs(t, err, ErrPartialScan)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, snapshot.Success)
	assert.Empty(t, snapshot.Records)
	assert.Equal(t, 1, mailbox.connects)
}

func TestCoordinator_UnknownCarrier(t *testing.T) {
	c := newTestCoordinator(newFakeMailbox(), nil, nil, CoordinatorConfig{Carriers: []string{"UPS"}})

	snapshot, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnknownCarrier)
	assert.False(t, snapshot.Success)
	assert.Empty(t, snapshot.Records)
}

func TestCoordinator_Refresh(t *testing.T) {
	mailbox := twoCarrierMailbox()
	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{
		Refresh: ratelimit.Policy{Cooldown: time.Hour},
	})

	snapshot, remaining, err := c.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	assert.Equal(t, 3, snapshot.Total)

	_, remaining, err = c.Refresh(context.Background(), false)
	assert.ErrorIs(t, err, ErrRefreshLimited)
	assert.Greater(t, remaining, 59*time.Minute)
	assert.Equal(t, 2, mailbox.connects)

	_, _, err = c.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 4, mailbox.connects)
}

func TestCoordinator_RefreshDisabledLimit(t *testing.T) {
	c := newTestCoordinator(twoCarrierMailbox(), nil, nil, CoordinatorConfig{
		Refresh: ratelimit.Policy{Disabled: true},
	})

	for i := 0; i < 3; i++ {
		_, _, err := c.Refresh(context.Background(), false)
		require.NoError(t, err)
	}
}

func TestCoordinator_StartStop(t *testing.T) {
	mailbox := twoCarrierMailbox()
	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{Schedule: "@every 1h"})

	require.NoError(t, c.Start())
	assert.Eventually(t, func() bool {
		return c.Snapshot().Success
	}, 2*time.Second, 10*time.Millisecond)
	c.Stop()

	assert.Equal(t, 3, c.Snapshot().Total)
}

func TestCoordinator_InvalidSchedule(t *testing.T) {
	c := newTestCoordinator(newFakeMailbox(), nil, nil, CoordinatorConfig{Schedule: "every now and then"})
	err := c.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid poll schedule")
}

func TestCoordinator_PauseSkipsScheduledRuns(t *testing.T) {
	mailbox := twoCarrierMailbox()
	c := newTestCoordinator(mailbox, nil, nil, CoordinatorConfig{})

	c.Pause()
	assert.True(t, c.IsPaused())
	c.scheduledRun()
	assert.Equal(t, 0, mailbox.connects)

	c.Resume()
	c.scheduledRun()
	assert.Equal(t, 2, mailbox.connects)
}
