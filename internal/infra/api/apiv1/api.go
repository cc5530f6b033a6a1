package apiv1

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface is the v1 route surface. Path and query parameters arrive already bound.
type ServerInterface interface {
	// (GET /api/v1/content/{contentId}/access)
	GetContentAccess(w http.ResponseWriter, r *http.Request, contentID string, params SeasonParams)
	// (GET /api/v1/content/{contentId}/price)
	GetContentPrice(w http.ResponseWriter, r *http.Request, contentID string, params SeasonParams)
	// (GET /api/v1/content/{contentId}/seasons/purchased)
	ListPurchasedSeasons(w http.ResponseWriter, r *http.Request, contentID string)
	// (POST /api/v1/checkout)
	StartCheckout(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/payment/notify)
	PaymentNotify(w http.ResponseWriter, r *http.Request)
	// (GET /payment/return)
	PaymentReturn(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/purchases)
	ListPurchases(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/purchases/{orderId})
	GetPurchase(w http.ResponseWriter, r *http.Request, orderID string)
	// (PUT /api/v1/admin/content/{contentId}/price)
	SetContentPrice(w http.ResponseWriter, r *http.Request, contentID string)
	// (GET /api/v1/admin/content/{contentId}/seasons/prices)
	ListSeasonPrices(w http.ResponseWriter, r *http.Request, contentID string)
	// (POST /api/v1/admin/content/{contentId}/seasons/prices)
	BulkSetSeasonPrices(w http.ResponseWriter, r *http.Request, contentID string)
	// (PUT /api/v1/admin/content/{contentId}/seasons/{seasonNumber}/price)
	SetSeasonPrice(w http.ResponseWriter, r *http.Request, contentID string, seasonNumber int)
	// (DELETE /api/v1/admin/content/{contentId}/seasons/{seasonNumber}/price)
	DeleteSeasonPrice(w http.ResponseWriter, r *http.Request, contentID string, seasonNumber int)
	// (POST /api/v1/admin/purchases/{orderId}/refund)
	RefundPurchase(w http.ResponseWriter, r *http.Request, orderID string)
}

// SeasonParams carries the optional ?season= query parameter.
type SeasonParams struct {
	Season *int `form:"season,omitempty" json:"season,omitempty"`
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerInterfaceWrapper binds parameters and forwards to the ServerInterface.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) pathString(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, chi.URLParam(r, name), &v)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return "", false
	}
	return v, true
}

func (siw *ServerInterfaceWrapper) pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	var v int
	err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, chi.URLParam(r, name), &v)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return 0, false
	}
	return v, true
}

func (siw *ServerInterfaceWrapper) seasonParams(w http.ResponseWriter, r *http.Request) (SeasonParams, bool) {
	var params SeasonParams
	err := runtime.BindQueryParameter("form", true, false, "season", r.URL.Query(), &params.Season)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "season", Err: err})
		return params, false
	}
	return params, true
}

func (siw *ServerInterfaceWrapper) GetContentAccess(w http.ResponseWriter, r *http.Request) {
	contentID, ok := siw.pathString(w, r, "contentId")
	if !ok {
		return
	}
	params, ok := siw.seasonParams(w, r)
	if !ok {
		return
	}
	siw.Handler.GetContentAccess(w, r, contentID, params)
}

func (siw *ServerInterfaceWrapper) GetContentPrice(w http.ResponseWriter, r *http.Request) {
	contentID, ok := siw.pathString(w, r, "contentId")
	if !ok {
		return
	}
	params, ok := siw.seasonParams(w, r)
	if !ok {
		return
	}
	siw.Handler.GetContentPrice(w, r, contentID, params)
}

func (siw *ServerInterfaceWrapper) ListPurchasedSeasons(w http.ResponseWriter, r *http.Request) {
	if contentID, ok := siw.pathString(w, r, "contentId"); ok {
		siw.Handler.ListPurchasedSeasons(w, r, contentID)
	}
}

func (siw *ServerInterfaceWrapper) StartCheckout(w http.ResponseWriter, r *http.Request) {
	siw.Handler.StartCheckout(w, r)
}

func (siw *ServerInterfaceWrapper) PaymentNotify(w http.ResponseWriter, r *http.Request) {
	siw.Handler.PaymentNotify(w, r)
}

func (siw *ServerInterfaceWrapper) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	siw.Handler.PaymentReturn(w, r)
}

func (siw *ServerInterfaceWrapper) ListPurchases(w http.ResponseWriter, r *http.Request) {
	siw.Handler.ListPurchases(w, r)
}

func (siw *ServerInterfaceWrapper) GetPurchase(w http.ResponseWriter, r *http.Request) {
	if orderID, ok := siw.pathString(w, r, "orderId"); ok {
		siw.Handler.GetPurchase(w, r, orderID)
	}
}

func (siw *ServerInterfaceWrapper) SetContentPrice(w http.ResponseWriter, r *http.Request) {
	if contentID, ok := siw.pathString(w, r, "contentId"); ok {
		siw.Handler.SetContentPrice(w, r, contentID)
	}
}

func (siw *ServerInterfaceWrapper) ListSeasonPrices(w http.ResponseWriter, r *http.Request) {
	if contentID, ok := siw.pathString(w, r, "contentId"); ok {
		siw.Handler.ListSeasonPrices(w, r, contentID)
	}
}

func (siw *ServerInterfaceWrapper) BulkSetSeasonPrices(w http.ResponseWriter, r *http.Request) {
	if contentID, ok := siw.pathString(w, r, "contentId"); ok {
		siw.Handler.BulkSetSeasonPrices(w, r, contentID)
	}
}

func (siw *ServerInterfaceWrapper) SetSeasonPrice(w http.ResponseWriter, r *http.Request) {
	contentID, ok := siw.pathString(w, r, "contentId")
	if !ok {
		return
	}
	season, ok := siw.pathInt(w, r, "seasonNumber")
	if !ok {
		return
	}
	siw.Handler.SetSeasonPrice(w, r, contentID, season)
}

func (siw *ServerInterfaceWrapper) DeleteSeasonPrice(w http.ResponseWriter, r *http.Request) {
	contentID, ok := siw.pathString(w, r, "contentId")
	if !ok {
		return
	}
	season, ok := siw.pathInt(w, r, "seasonNumber")
	if !ok {
		return
	}
	siw.Handler.DeleteSeasonPrice(w, r, contentID, season)
}

func (siw *ServerInterfaceWrapper) RefundPurchase(w http.ResponseWriter, r *http.Request) {
	if orderID, ok := siw.pathString(w, r, "orderId"); ok {
		siw.Handler.RefundPurchase(w, r, orderID)
	}
}

// RegisterAPIV1 mounts the v1 routes at absolute paths. identify runs on every route;
// the purchase and admin groups additionally require a user or admin principal.
func RegisterAPIV1(r chi.Router, si ServerInterface, identify func(http.Handler) http.Handler) {
	wrapper := &ServerInterfaceWrapper{
		Handler: si,
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		},
	}

	// gateway-facing; authenticated by signatures, not bearer tokens
	r.Get("/payment/return", wrapper.PaymentReturn)
	r.Post("/api/v1/payment/notify", wrapper.PaymentNotify)

	r.Group(func(r chi.Router) {
		if identify != nil {
			r.Use(identify)
		}
		r.Get("/api/v1/content/{contentId}/access", wrapper.GetContentAccess)
		r.Get("/api/v1/content/{contentId}/price", wrapper.GetContentPrice)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Get("/api/v1/content/{contentId}/seasons/purchased", wrapper.ListPurchasedSeasons)
			r.Post("/api/v1/checkout", wrapper.StartCheckout)
			r.Get("/api/v1/purchases", wrapper.ListPurchases)
			r.Get("/api/v1/purchases/{orderId}", wrapper.GetPurchase)
		})

		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Put("/content/{contentId}/price", wrapper.SetContentPrice)
			r.Get("/content/{contentId}/seasons/prices", wrapper.ListSeasonPrices)
			r.Post("/content/{contentId}/seasons/prices", wrapper.BulkSetSeasonPrices)
			r.Put("/content/{contentId}/seasons/{seasonNumber}/price", wrapper.SetSeasonPrice)
			r.Delete("/content/{contentId}/seasons/{seasonNumber}/price", wrapper.DeleteSeasonPrice)
			r.Post("/purchases/{orderId}/refund", wrapper.RefundPurchase)
		})
	})
}
