package flow

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"wolff/internal/codec"
	"wolff/internal/metrics"
	"wolff/internal/ports"
	"wolff/internal/types"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	exprListingID = "results[0].listing_id"
	exprQuantity  = "results[0].quantity"
)

// Handler turns an upstream response into the reply bytes for the original caller.
type Handler interface {
	Handle(ctx context.Context, resp types.UpstreamResponse, call types.Call) ([]byte, error)
}

type HandlerFunc func(ctx context.Context, resp types.UpstreamResponse, call types.Call) ([]byte, error)

func (f HandlerFunc) Handle(ctx context.Context, resp types.UpstreamResponse, call types.Call) ([]byte, error) {
	return f(ctx, resp, call)
}

type responseHandlers struct {
	records   ports.RecordStore
	publisher ports.Publisher
	salesArn  string
}

// DefaultHandlers returns the handler table keyed by method name. Sale notifications go
// to salesArn through publisher; an empty salesArn disables them.
func DefaultHandlers(records ports.RecordStore, publisher ports.Publisher, salesArn string) map[string]Handler {
	h := &responseHandlers{records: records, publisher: publisher, salesArn: salesArn}
	return map[string]Handler{
		types.MethodCreateListing:     HandlerFunc(h.createListing),
		types.MethodCheckListingStock: HandlerFunc(h.checkListingStock),
		types.MethodUpdateListing:     HandlerFunc(h.updateListing),
	}
}

func (h *responseHandlers) createListing(ctx context.Context, resp types.UpstreamResponse, call types.Call) ([]byte, error) {
	if !resp.OK() {
		return nil, &types.UpstreamError{Status: resp.Status, Body: string(resp.Body)}
	}
	body, err := DecodeJSONObject(resp.Body)
	if err != nil {
		return nil, types.Err(types.ErrUpstream, err, "create_listing response")
	}
	listingID, err := EvalString(exprListingID, body)
	if err != nil || listingID == nil || *listingID == "" {
		return nil, types.Err(types.ErrUpstream, err, "create_listing response carries no listing id")
	}
	quantity, ok, err := EvalInt(exprQuantity, body)
	if err != nil {
		return nil, types.Err(types.ErrUpstream, err, "")
	}
	if !ok {
		// not echoed back; fall back to what was requested
		quantity, ok = toInt(call.Request.Params[codec.ParamQuantity])
		if !ok {
			quantity = 0
		}
	}

	recordID, err := h.records.RecordListing(ctx, *listingID, call.ClientID, int(quantity))
	if err != nil {
		return nil, err
	}
	if recordID <= 0 || recordID > math.MaxUint32 {
		return nil, types.Err(types.ErrStorage, nil, "record id %d does not fit the reply", recordID)
	}
	log.WithFields(log.Fields{
		"client":    call.ClientID,
		"listingID": *listingID,
		"recordID":  recordID,
	}).Info("listing created")
	return codec.EncodeRecordReply(uint32(recordID)), nil
}

func (h *responseHandlers) checkListingStock(ctx context.Context, resp types.UpstreamResponse, call types.Call) ([]byte, error) {
	if !resp.OK() {
		return nil, &types.UpstreamError{Status: resp.Status, Body: string(resp.Body)}
	}
	body, err := DecodeJSONObject(resp.Body)
	if err != nil {
		return nil, types.Err(types.ErrUpstream, err, "check_listing_stock response")
	}
	current, ok, err := EvalInt(exprQuantity, body)
	if err != nil || !ok {
		return nil, types.Err(types.ErrUpstream, err, "check_listing_stock response carries no quantity")
	}
	if current < 0 {
		return nil, types.Err(types.ErrUpstream, nil, "negative quantity %d", current)
	}

	listingID := call.ListingID
	if echoed, _ := EvalString(exprListingID, body); echoed != nil && *echoed != "" {
		listingID = *echoed
	}
	recordID, err := h.records.RecordIDForListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if recordID != call.RecordID {
		return nil, types.Err(types.ErrUpstream, nil,
			"listing %s belongs to record %d, request was for record %d", listingID, recordID, call.RecordID)
	}

	previous, err := h.records.ReconcileStock(ctx, recordID, int(current))
	if err != nil {
		return nil, err
	}
	sold := int64(previous) - current
	fields := log.Fields{"recordID": recordID, "previous": previous, "current": current}
	if sold < 0 {
		log.WithFields(fields).Info("listing restocked")
		sold = 0
	}
	if sold > 0 {
		h.publishSale(ctx, types.SaleEvent{
			ClientID:  call.ClientID,
			RecordID:  recordID,
			ListingID: listingID,
			Sold:      int(sold),
			Quantity:  int(current),
			At:        EpochTime(),
		})
	}
	log.WithFields(fields).WithField("sold", sold).Debug("stock reconciled")
	return codec.EncodeStockReply(uint32(sold)), nil
}

func (h *responseHandlers) updateListing(ctx context.Context, resp types.UpstreamResponse, call types.Call) ([]byte, error) {
	if resp.Status != http.StatusOK {
		log.WithFields(log.Fields{"recordID": call.RecordID, "status": resp.Status}).Info("update rejected upstream")
		return []byte(UpdateFailure), nil
	}
	quantity, ok := int64(0), false
	if body, err := DecodeJSONObject(resp.Body); err == nil {
		quantity, ok, _ = EvalInt(exprQuantity, body)
	}
	if !ok {
		quantity, ok = toInt(call.Update[codec.ParamQuantity])
	}
	if ok && quantity >= 0 {
		if err := h.records.SetStock(ctx, call.RecordID, int(quantity)); err != nil {
			return nil, err
		}
	}
	return []byte(UpdateSuccess), nil
}

// publishSale is best effort: the stock has already been reconciled.
func (h *responseHandlers) publishSale(ctx context.Context, ev types.SaleEvent) {
	if h.publisher == nil || h.salesArn == "" {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.WithError(err).Error("failed to marshal sale event")
		return
	}
	if err := h.publisher.PublishRaw(ctx, h.salesArn, b); err != nil {
		log.WithError(err).WithField("recordID", ev.RecordID).Warn("failed to publish sale event")
		return
	}
	metrics.SalesPublishedTotal.Inc()
	log.WithFields(log.Fields{
		"client":   ev.ClientID,
		"recordID": ev.RecordID,
		"sold":     strconv.Itoa(ev.Sold),
	}).Info("sale published")
}
