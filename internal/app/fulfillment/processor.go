// Package fulfillment turns checkout-provider webhook events into order
// records and release access. A completed order grants the release to the
// user and unlocks every track of the release in the play-gate ledger; a
// refund reverses both.
package fulfillment

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/app/playgate"
	"github.com/numba-music/storefront/internal/domain/catalog"
	"github.com/numba-music/storefront/internal/store"
)

// Webhook event types sent by the checkout provider. Subscription events
// are acknowledged but carry no fulfillment logic.
const (
	EventOrderCreated          = "order.created"
	EventOrderCompleted        = "order.completed"
	EventOrderRefunded         = "order.refunded"
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionUpdated   = "subscription.updated"
	EventSubscriptionCancelled = "subscription.cancelled"
)

// ErrUnknownEvent is returned for event types the processor does not
// recognize. Callers typically acknowledge these anyway.
var ErrUnknownEvent = errors.New("unknown webhook event type")

// Event is a checkout-provider webhook payload.
type Event struct {
	Type string    `json:"type"`
	Data OrderData `json:"data"`
}

// OrderData is the order object embedded in a webhook event.
type OrderData struct {
	ID          string         `json:"id"`
	CustomerID  string         `json:"customer_id"`
	ProductID   string         `json:"product_id"`
	AmountCents int64          `json:"amount"`
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata"`
}

// orderMetadata is the portion of the free-form metadata map the checkout
// session stamps onto the order.
type orderMetadata struct {
	UserID      string `mapstructure:"user_id"`
	ReleaseID   string `mapstructure:"release_id"`
	ProductType string `mapstructure:"product_type"`
}

// Processor applies webhook events to the order store, the purchase
// records and the play-gate ledger.
type Processor struct {
	orders    *store.OrdersRepo
	purchases *store.PurchasesRepo
	ledger    *playgate.Ledger
	catalog   catalog.Provider
}

// NewProcessor creates a webhook event processor.
func NewProcessor(orders *store.OrdersRepo, purchases *store.PurchasesRepo, ledger *playgate.Ledger, provider catalog.Provider) *Processor {
	return &Processor{
		orders:    orders,
		purchases: purchases,
		ledger:    ledger,
		catalog:   provider,
	}
}

// Process dispatches a webhook event. Redelivered events are safe: order
// insertion, access grants and ledger marks are all idempotent.
func (p *Processor) Process(evt Event) error {
	zlog.Info().Msgf("fulfillment: received webhook event %s", evt.Type)

	switch evt.Type {
	case EventOrderCreated, EventOrderCompleted:
		return p.handleOrder(evt.Data)
	case EventOrderRefunded:
		return p.handleRefund(evt.Data)
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCancelled:
		// Subscriptions are out of scope for the storefront; acknowledge.
		zlog.Info().Msgf("fulfillment: ignoring subscription event %s for %s", evt.Type, evt.Data.ID)
		return nil
	default:
		return errors.Wrapf(ErrUnknownEvent, "type=%s", evt.Type)
	}
}

func (p *Processor) handleOrder(data OrderData) error {
	meta, err := decodeMetadata(data.Metadata)
	if err != nil {
		return err
	}

	// An absent status is stored as completed, but access is granted only
	// when the provider said "completed" outright.
	status := data.Status
	if status == "" {
		status = store.OrderStatusCompleted
	}
	productType := meta.ProductType
	if productType == "" {
		productType = "digital"
	}

	order, err := p.orders.Insert(store.Order{
		ProviderOrderID: data.ID,
		UserID:          meta.UserID,
		ReleaseID:       meta.ReleaseID,
		ProductType:     productType,
		AmountCents:     data.AmountCents,
		Status:          status,
	})
	if err != nil {
		return err
	}

	if data.Status != store.OrderStatusCompleted || meta.UserID == "" || meta.ReleaseID == "" {
		return nil
	}

	if err := p.purchases.Grant(meta.UserID, meta.ReleaseID); err != nil {
		return err
	}
	p.unlockTracks(meta.ReleaseID)

	zlog.Info().Msgf("fulfillment: granted release %s to user %s (order %s)",
		meta.ReleaseID, meta.UserID, order.ID)
	return nil
}

func (p *Processor) handleRefund(data OrderData) error {
	meta, err := decodeMetadata(data.Metadata)
	if err != nil {
		return err
	}

	if err := p.orders.UpdateStatus(data.ID, store.OrderStatusRefunded); err != nil {
		// A refund for an order we never saw still revokes access below.
		if !errors.Is(err, store.ErrOrderNotFound) {
			return err
		}
		zlog.Warn().Msgf("fulfillment: refund for unknown order %s", data.ID)
	}

	if meta.UserID == "" || meta.ReleaseID == "" {
		return nil
	}

	if err := p.purchases.Revoke(meta.UserID, meta.ReleaseID); err != nil {
		return err
	}
	p.relockTracks(meta.ReleaseID)

	zlog.Info().Msgf("fulfillment: revoked release %s from user %s (order %s)",
		meta.ReleaseID, meta.UserID, data.ID)
	return nil
}

// unlockTracks marks every track of the release purchased in the ledger
// so the free-play gate stops counting them.
func (p *Processor) unlockTracks(releaseID string) {
	release, err := p.catalog.GetRelease(releaseID)
	if err != nil {
		zlog.Warn().Msgf("fulfillment: release %s not in catalog, ledger not updated: %v", releaseID, err)
		return
	}
	for _, t := range release.Tracks {
		p.ledger.MarkTrackPurchased(catalog.TrackID(releaseID, t.Number))
	}
}

// relockTracks drops every track of the release back behind the gate.
func (p *Processor) relockTracks(releaseID string) {
	release, err := p.catalog.GetRelease(releaseID)
	if err != nil {
		zlog.Warn().Msgf("fulfillment: release %s not in catalog, ledger not updated: %v", releaseID, err)
		return
	}
	for _, t := range release.Tracks {
		p.ledger.RevokeTrackPurchase(catalog.TrackID(releaseID, t.Number))
	}
}

func decodeMetadata(raw map[string]any) (orderMetadata, error) {
	var meta orderMetadata
	if raw == nil {
		return meta, nil
	}
	if err := mapstructure.Decode(raw, &meta); err != nil {
		return meta, errors.Wrap(err, "failed to decode order metadata")
	}
	return meta, nil
}
