package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/appetiteclub/pos/services/pos/internal/backend"
	"github.com/appetiteclub/pos/services/pos/internal/catalog"
	"github.com/appetiteclub/pos/services/pos/internal/order"
)

type staticCatalog struct {
	snap *catalog.Snapshot
}

func (c staticCatalog) Snapshot() *catalog.Snapshot {
	return c.snap
}

func newTestRouter(env *testEnv, cat CatalogReader) http.Handler {
	h := NewHandler(HandlerDeps{Registry: env.registry, Catalog: cat}, aqm.NewConfig(), nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("cannot encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(OperatorHeader, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(HandlerDeps{}, aqm.NewConfig(), nil)
	if h == nil {
		t.Fatal("NewHandler() returned nil")
	}
	if h.logger == nil {
		t.Error("NewHandler() should set noop logger when nil")
	}
}

func TestHandlerGetCatalog(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name    string
		catalog CatalogReader
		want    int
	}{
		{name: "notLoaded", catalog: staticCatalog{}, want: http.StatusServiceUnavailable},
		{name: "noReader", catalog: nil, want: http.StatusServiceUnavailable},
		{name: "loaded", catalog: staticCatalog{snap: &catalog.Snapshot{}}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestRouter(env, tt.catalog), http.MethodGet, "/catalog", nil)
			if w.Code != tt.want {
				t.Errorf("GET /catalog status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandlerOrderFlow(t *testing.T) {
	env := newTestEnv()
	router := newTestRouter(env, nil)
	base := "/terminals/t1/order"

	if w := do(t, router, http.MethodGet, base, nil); w.Code != http.StatusNotFound {
		t.Errorf("GET order without order status = %d, want 404", w.Code)
	}

	if w := do(t, router, http.MethodPost, base, CreateOrderRequest{Type: order.TypeTakeout}); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, base, CreateOrderRequest{Type: order.TypeTakeout}); w.Code != http.StatusConflict {
		t.Errorf("second create status = %d, want 409", w.Code)
	}

	w := do(t, router, http.MethodPost, base+"/items", AddItemRequest{MenuItemID: &sodaID, Quantity: 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("add item status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, base+"/items", AddItemRequest{MenuItemID: &burgerID, Quantity: 1}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("add burger without doneness status = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/items", `{"quantity":`); w.Code != http.StatusBadRequest {
		t.Errorf("add item with bad JSON status = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/items/repeat", nil); w.Code != http.StatusCreated {
		t.Errorf("repeat status = %d, want 201", w.Code)
	}

	v, err := env.session("t1").View()
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	itemID := v.Items[0].ID

	quantity := 3
	if w := do(t, router, http.MethodPatch, fmt.Sprintf("%s/items/%s", base, itemID), ItemPatch{Quantity: &quantity}); w.Code != http.StatusOK {
		t.Errorf("patch status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPatch, base+"/items/not-a-uuid", ItemPatch{Quantity: &quantity}); w.Code != http.StatusBadRequest {
		t.Errorf("patch with bad id status = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, fmt.Sprintf("%s/items/%s/void", base, uuid.New()), VoidRequest{Reason: "x"}); w.Code != http.StatusNotFound {
		t.Errorf("void unknown item status = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, fmt.Sprintf("%s/items/%s/void", base, itemID), VoidRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("void without reason status = %d, want 400", w.Code)
	}

	if w := do(t, router, http.MethodPost, base+"/send", SendRequest{Destination: "grill"}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("send to unknown destination status = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/send", SendRequest{Destination: "bar"}); w.Code != http.StatusOK {
		t.Errorf("send status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, base+"/courses/abc/fire", nil); w.Code != http.StatusBadRequest {
		t.Errorf("fire bad course status = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/items/hold", ItemsRequest{ItemIDs: []uuid.UUID{itemID}}); w.Code != http.StatusOK {
		t.Errorf("hold status = %d, want 200: %s", w.Code, w.Body.String())
	}

	if w := do(t, router, http.MethodPut, base+"/tip", TipRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("tip without value status = %d, want 400", w.Code)
	}
	percent := 10
	if w := do(t, router, http.MethodPut, base+"/tip", TipRequest{Percent: &percent}); w.Code != http.StatusOK {
		t.Errorf("tip status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPut, base+"/discount", `{"amount":"1.00"}`); w.Code != http.StatusOK {
		t.Errorf("discount status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodDelete, base+"/discount", nil); w.Code != http.StatusOK {
		t.Errorf("clear discount status = %d, want 200", w.Code)
	}
	if w := do(t, router, http.MethodPut, base+"/split", `{"strategy":"equal","count":1}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid split status = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, base+"/bill", nil); w.Code != http.StatusOK {
		t.Errorf("bill status = %d, want 200", w.Code)
	}

	if w := do(t, router, http.MethodPost, base+"/finalize", nil); w.Code != http.StatusOK {
		t.Errorf("finalize status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, base+"/items/repeat", nil); w.Code != http.StatusConflict {
		t.Errorf("repeat on finalized order status = %d, want 409", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/close", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("close unpaid status = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/payments", `{"type":"cash","tendered":"1.00"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("short cash status = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/payments", `{"type":"card"}`); w.Code != http.StatusCreated {
		t.Errorf("card payment status = %d, want 201: %s", w.Code, w.Body.String())
	}

	if w := do(t, router, http.MethodGet, base, nil); w.Code != http.StatusNotFound {
		t.Errorf("GET order after close status = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, base+"/release", nil); w.Code != http.StatusNotFound {
		t.Errorf("release without order status = %d, want 404", w.Code)
	}
}

func TestHandlerLoadAndRelease(t *testing.T) {
	env := newTestEnv()
	router := newTestRouter(env, nil)

	if w := do(t, router, http.MethodPost, "/terminals/t1/order/items", AddItemRequest{MenuItemID: &sodaID, Quantity: 1}); w.Code != http.StatusCreated {
		t.Fatalf("add item status = %d", w.Code)
	}
	id, _ := env.session("t1").OrderID()

	if w := do(t, router, http.MethodPost, "/terminals/t1/order/release", nil); w.Code != http.StatusNoContent {
		t.Errorf("release status = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/terminals/t2/order/load", LoadOrderRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("load without id status = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/terminals/t2/order/load", LoadOrderRequest{OrderID: uuid.New()}); w.Code != http.StatusNotFound {
		t.Errorf("load unknown order status = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/terminals/t2/order/load", LoadOrderRequest{OrderID: id}); w.Code != http.StatusOK {
		t.Errorf("load status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/orders/active", nil); w.Code != http.StatusOK {
		t.Errorf("active orders status = %d, want 200", w.Code)
	}
}

func TestHandlerTableOperations(t *testing.T) {
	env := newTestEnv()
	router := newTestRouter(env, nil)

	if w := do(t, router, http.MethodPost, "/terminals/t1/order", CreateOrderRequest{Type: order.TypeDineIn}); w.Code != http.StatusBadRequest {
		t.Errorf("dine-in without table status = %d, want 400", w.Code)
	}
	for terminal, table := range map[string]uuid.UUID{"t1": table1, "t2": table2} {
		tbl := table
		if w := do(t, router, http.MethodPost, "/terminals/"+terminal+"/order", CreateOrderRequest{Type: order.TypeDineIn, TableID: &tbl}); w.Code != http.StatusCreated {
			t.Fatalf("create at %s status = %d: %s", terminal, w.Code, w.Body.String())
		}
		if w := do(t, router, http.MethodPost, "/terminals/"+terminal+"/order/items", AddItemRequest{MenuItemID: &sodaID, Quantity: 1}); w.Code != http.StatusCreated {
			t.Fatalf("add item at %s status = %d", terminal, w.Code)
		}
	}
	id, _ := env.session("t1").OrderID()

	if w := do(t, router, http.MethodPost, fmt.Sprintf("/terminals/t1/orders/%s/transfer", id), TransferRequest{TableID: table2}); w.Code != http.StatusConflict {
		t.Errorf("transfer to occupied table status = %d, want 409", w.Code)
	}
	if w := do(t, router, http.MethodPost, fmt.Sprintf("/terminals/t1/orders/%s/transfer", id), TransferRequest{TableID: table3}); w.Code != http.StatusOK {
		t.Errorf("transfer status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/terminals/t1/merge", MergeRequest{PrimaryTable: table3, SourceTables: []uuid.UUID{table2, table2}}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("merge duplicate status = %d, want 422", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/terminals/t1/merge", MergeRequest{PrimaryTable: table3, SourceTables: []uuid.UUID{table2}}); w.Code != http.StatusOK {
		t.Errorf("merge status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/terminals/t1/orders/bad/void", VoidRequest{Reason: "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("void bad id status = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, fmt.Sprintf("/terminals/t1/orders/%s/void", id), VoidRequest{Reason: "comped"}); w.Code != http.StatusOK {
		t.Errorf("void order status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, fmt.Sprintf("/terminals/t1/orders/%s/void", id), VoidRequest{Reason: "comped"}); w.Code != http.StatusConflict {
		t.Errorf("second void status = %d, want 409", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"backend", wrapBackend("add item", errUnreachable), http.StatusServiceUnavailable},
		{"noOrder", order.ErrNoOrder, http.StatusNotFound},
		{"backendNotFound", wrapBackend("load order", backend.ErrNotFound), http.StatusNotFound},
		{"busy", fmt.Errorf("%w: order x", order.ErrSessionBusy), http.StatusConflict},
		{"locked", order.ErrOrderLocked, http.StatusConflict},
		{"conflict", wrapBackend("update order", backend.ErrConflict), http.StatusConflict},
		{"modifiers", order.ErrIncompleteModifierSelection, http.StatusUnprocessableEntity},
		{"insufficient", order.ErrInsufficientAmount, http.StatusUnprocessableEntity},
		{"quantity", order.ErrInvalidQuantity, http.StatusBadRequest},
		{"reason", order.ErrReasonRequired, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
