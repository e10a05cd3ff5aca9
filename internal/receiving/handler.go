package receiving

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/procurement"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes the receiving endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	printer  *message.Printer
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		printer:  message.NewPrinter(language.English),
	}
}

// MountRoutes registers receiving routes under the procurement prefix.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/pos/{id}/receipts", h.handleReceive)
	r.Get("/pos/{id}/receipts", h.handleListReceipts)
	r.Get("/pos/{id}/match", h.handleMatch)
}

type receiveLineRequest struct {
	POLineID     int64   `json:"poLineItemId" validate:"required,gt=0"`
	QtyReceived  float64 `json:"quantityReceived" validate:"gte=0"`
	QtyRejected  float64 `json:"quantityRejected" validate:"gte=0"`
	RejectReason string  `json:"rejectionReason"`
	Note         string  `json:"note"`
}

type receiveRequest struct {
	ReceivedBy     int64                `json:"receivedBy" validate:"required,gt=0"`
	ReceivedAt     time.Time            `json:"receivedAt"`
	LocationID     int64                `json:"locationId" validate:"required,gt=0"`
	ReceiptNumber  string               `json:"receiptNumber"`
	Lines          []receiveLineRequest `json:"lineItems" validate:"required,min=1,dive"`
	Note           string               `json:"note"`
	AutoCreateBill bool                 `json:"autoCreateBill"`
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	poID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || poID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, validationProblem(err))
		return
	}

	// Billing is strictly opt-in: an omitted autoCreateBill means no bill.
	cmd := ReceiveCommand{
		POID:           poID,
		ReceivedBy:     req.ReceivedBy,
		ReceivedAt:     req.ReceivedAt,
		LocationID:     req.LocationID,
		ReceiptNumber:  req.ReceiptNumber,
		Note:           req.Note,
		AutoCreateBill: req.AutoCreateBill,
	}
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = time.Now().UTC()
	}
	for _, line := range req.Lines {
		cmd.Lines = append(cmd.Lines, ReceiveLineCommand{
			POLineID:     line.POLineID,
			QtyReceived:  line.QtyReceived,
			QtyRejected:  line.QtyRejected,
			RejectReason: line.RejectReason,
			Note:         line.Note,
		})
	}

	result, err := h.service.Receive(r.Context(), cmd)
	if err != nil {
		h.logger.Error("receive against PO", slog.Any("error", err), slog.Int64("po_id", poID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

type receiptView struct {
	ID                 int64                     `json:"id"`
	Number             string                    `json:"number"`
	Status             procurement.ReceiptStatus `json:"status"`
	ReceivedBy         int64                     `json:"receivedBy"`
	ReceivedAt         time.Time                 `json:"receivedAt"`
	InventoryPosted    bool                      `json:"inventoryPosted"`
	Note               string                    `json:"note,omitempty"`
	Lines              []procurement.ReceiptLine `json:"lines"`
	TotalItemsReceived float64                   `json:"totalItemsReceived"`
	TotalItemsDisplay  string                    `json:"totalItemsDisplay"`
}

type receiptListResponse struct {
	POID            int64         `json:"poId"`
	Receipts        []receiptView `json:"receipts"`
	TotalQty        float64       `json:"totalQuantityReceived"`
	TotalQtyDisplay string        `json:"totalQuantityDisplay"`
}

func (h *Handler) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	poID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || poID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	receipts, err := h.service.GetReceiptsByPO(r.Context(), poID)
	if err != nil {
		h.logger.Error("list receipts", slog.Any("error", err), slog.Int64("po_id", poID))
		httpx.RespondError(w, err)
		return
	}

	resp := receiptListResponse{POID: poID, Receipts: make([]receiptView, 0, len(receipts))}
	for _, receipt := range receipts {
		var items float64
		for _, line := range receipt.Lines {
			items += line.QtyReceived
		}
		resp.TotalQty += items
		resp.Receipts = append(resp.Receipts, receiptView{
			ID:                 receipt.ID,
			Number:             receipt.Number,
			Status:             receipt.Status,
			ReceivedBy:         receipt.ReceivedBy,
			ReceivedAt:         receipt.ReceivedAt,
			InventoryPosted:    receipt.InventoryPosted,
			Note:               receipt.Note,
			Lines:              receipt.Lines,
			TotalItemsReceived: items,
			TotalItemsDisplay:  h.printer.Sprintf("%.2f", items),
		})
	}
	resp.TotalQtyDisplay = h.printer.Sprintf("%.2f", resp.TotalQty)
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	poID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || poID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	match, err := h.service.GetMatch(r.Context(), poID)
	if err != nil {
		h.logger.Error("evaluate match", slog.Any("error", err), slog.Int64("po_id", poID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, match)
}

// validationProblem converts the first validator failure into a shared
// validation error keyed by the JSON field casing used in requests.
func validationProblem(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return shared.ValidationError(jsonField(fe.Field()), "invalid value for "+jsonField(fe.Field()))
	}
	return shared.ValidationError("", "invalid request")
}

func jsonField(structField string) string {
	switch structField {
	case "ReceivedBy":
		return "receivedBy"
	case "LocationID":
		return "locationId"
	case "Lines":
		return "lineItems"
	case "POLineID":
		return "poLineItemId"
	case "QtyReceived":
		return "quantityReceived"
	case "QtyRejected":
		return "quantityRejected"
	}
	return structField
}
