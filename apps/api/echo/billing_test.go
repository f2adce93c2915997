package echoapi

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/access"
	"github.com/trezcool/spadesk/core/appointment"
	"github.com/trezcool/spadesk/core/billing"
	"github.com/trezcool/spadesk/core/quotation"
	"github.com/trezcool/spadesk/core/sale"
	"github.com/trezcool/spadesk/tests"
)

func Test_quotationApi_lifecycle(t *testing.T) {
	app := setup(t)
	recept := app.createUser(t, "recept", "receptionist")
	token := app.token(t, recept)
	cl := testutil.CreateClient(t, app.clRepo, "quote@spadesk.test")
	noEmail := testutil.CreateClient(t, app.clRepo)

	items := []billing.LineItem{
		{Description: "Wedding package", Quantity: 2, UnitPrice: 5000, Discount: 1000},
	}

	tests := []httpTest{
		{
			name: "no items", method: http.MethodPost, path: "/v1/quotations", token: token,
			body: quotation.NewQuotation{ClientID: cl.ID}, wantCode: http.StatusBadRequest,
		},
		{
			name: "discount too large", method: http.MethodPost, path: "/v1/quotations", token: token,
			body: quotation.NewQuotation{ClientID: cl.ID, Items: []billing.LineItem{
				{Description: "Manicure", Quantity: 1, UnitPrice: 2000, Discount: 2500},
			}},
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"items[0].discount": "discount cannot exceed quantity times unit price"}),
		},
	}
	runHTTPTests(t, app, tests)

	var q quotation.Quotation
	rec := app.do(t, http.MethodPost, "/v1/quotations", token, quotation.NewQuotation{ClientID: cl.ID, Items: items}, &q)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Q-000001", q.Number)
	assert.Equal(t, quotation.StatusDraft, q.Status)
	assert.Equal(t, billing.Totals{Subtotal: 10000, DiscountTotal: 1000, TaxTotal: 1800, Total: 10800}, q.Totals)
	assert.True(t, q.ValidUntil.After(time.Now().AddDate(0, 0, 30)))

	// converting requires an accepted quotation
	rec = app.do(t, http.MethodPost, "/v1/quotations/"+q.ID+"/convert", token, quotation.Convert{PaymentMethod: sale.PaymentCard})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, marshalString(t, httpErr{Error: quotation.ErrNotAccepted.Error()}), rec.Body.String())

	rec = app.do(t, http.MethodPost, "/v1/quotations/"+q.ID+"/send", token, nil, &q)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, quotation.StatusSent, q.Status)
	sent := app.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "quote@spadesk.test", sent[0].To[0].Address)
	assert.True(t, strings.Contains(sent[0].TextContent, "Q-000001"), sent[0].TextContent)

	// sent quotations are frozen
	rec = app.do(t, http.MethodPut, "/v1/quotations/"+q.ID, token, quotation.UpdateQuotation{ClientID: cl.ID, Items: items})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/v1/quotations/"+q.ID+"/status", token, quotation.SetStatus{Status: quotation.StatusAccepted}, &q)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, quotation.StatusAccepted, q.Status)

	var conv ConvertResponse
	rec = app.do(t, http.MethodPost, "/v1/quotations/"+q.ID+"/convert", token, quotation.Convert{PaymentMethod: sale.PaymentCard}, &conv)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, quotation.StatusInvoiced, conv.Quotation.Status)
	assert.Equal(t, conv.Sale.ID, conv.Quotation.SaleID)
	assert.Equal(t, "S-000001", conv.Sale.Number)
	assert.Equal(t, q.ID, conv.Sale.QuotationID)
	assert.Equal(t, cl.ID, conv.Sale.ClientID)
	assert.Equal(t, q.Totals, conv.Sale.Totals)

	rec = app.do(t, http.MethodPost, "/v1/quotations/"+q.ID+"/convert", token, quotation.Convert{PaymentMethod: sale.PaymentCard})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// a client without email cannot receive quotations
	var other quotation.Quotation
	rec = app.do(t, http.MethodPost, "/v1/quotations", token, quotation.NewQuotation{ClientID: noEmail.ID, Items: items}, &other)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Q-000002", other.Number)
	rec = app.do(t, http.MethodPost, "/v1/quotations/"+other.ID+"/send", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, marshalString(t, map[string]string{"client_id": quotation.ErrNoClientEmail.Error()}), rec.Body.String())

	rec = app.do(t, http.MethodDelete, "/v1/quotations/"+other.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func Test_quotationApi_expired(t *testing.T) {
	app := setup(t)
	recept := app.createUser(t, "recept", "receptionist")
	token := app.token(t, recept)
	cl := testutil.CreateClient(t, app.clRepo, "late@spadesk.test")

	var q quotation.Quotation
	rec := app.do(t, http.MethodPost, "/v1/quotations", token, quotation.NewQuotation{
		ClientID:   cl.ID,
		ValidUntil: time.Now().Add(-time.Hour),
		Items:      []billing.LineItem{{Description: "Sauna", Quantity: 1, UnitPrice: 1500}},
	}, &q)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/v1/quotations/"+q.ID, token, nil, &q)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, quotation.StatusExpired, q.Status)

	rec = app.do(t, http.MethodPost, "/v1/quotations/"+q.ID+"/status", token, quotation.SetStatus{Status: quotation.StatusAccepted})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, marshalString(t, httpErr{Error: quotation.ErrExpired.Error()}), rec.Body.String())

	var page core.PageResult[quotation.Quotation]
	rec = app.do(t, http.MethodGet, "/v1/quotations?status=expired", token, nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, page.Count)
}

func Test_saleApi(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", access.RoleAdmin)
	recept := app.createUser(t, "recept", "receptionist")
	token := app.token(t, recept)

	trt := testutil.CreateTreatment(t, app.trtRepo, "Massage", 60, 8000)
	emp := testutil.CreateEmployee(t, app.empRepo, "09:00", "18:00")
	cl := testutil.CreateClient(t, app.clRepo)

	var appt appointment.Appointment
	rec := app.do(t, http.MethodPost, "/v1/appointments", token, appointment.NewAppointment{
		ClientID:    cl.ID,
		EmployeeID:  emp.ID,
		TreatmentID: trt.ID,
		StartsAt:    testutil.NextWeekday(time.Friday, 15, 0),
	}, &appt)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []httpTest{
		{
			name: "bad payment method", method: http.MethodPost, path: "/v1/sales", token: token,
			body: sale.NewSale{PaymentMethod: "bitcoin", Items: []billing.LineItem{{Description: "Tip", Quantity: 1, UnitPrice: 500}}},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "reports forbidden", path: "/v1/sales/summary", token: token, wantCode: http.StatusForbidden,
		},
	}
	runHTTPTests(t, app, tests)

	other := testutil.CreateClient(t, app.clRepo)
	rec = app.do(t, http.MethodPost, "/v1/sales", token, sale.NewSale{
		ClientID:      other.ID,
		AppointmentID: appt.ID,
		PaymentMethod: sale.PaymentCash,
		Items:         []billing.LineItem{{TreatmentID: trt.ID, Description: trt.Name, Quantity: 1, UnitPrice: trt.Price}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.JSONEq(t, marshalString(t, map[string]string{"client_id": sale.ErrClientMismatch.Error()}), rec.Body.String())
	rec = app.do(t, http.MethodGet, "/v1/appointments/"+appt.ID, token, nil, &appt)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appointment.StatusScheduled, appt.Status, "rejected checkout leaves the appointment untouched")

	// checkout of the appointment completes it
	var s sale.Sale
	rec = app.do(t, http.MethodPost, "/v1/sales", token, sale.NewSale{
		AppointmentID: appt.ID,
		PaymentMethod: sale.PaymentCash,
		Items:         []billing.LineItem{{TreatmentID: trt.ID, Description: trt.Name, Quantity: 1, UnitPrice: trt.Price}},
	}, &s)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, cl.ID, s.ClientID)
	assert.Equal(t, emp.ID, s.EmployeeID)
	assert.Equal(t, core.Money(9600), s.Total)

	rec = app.do(t, http.MethodGet, "/v1/appointments/"+appt.ID, token, nil, &appt)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appointment.StatusCompleted, appt.Status)

	var walkIn sale.Sale
	rec = app.do(t, http.MethodPost, "/v1/sales", token, sale.NewSale{
		PaymentMethod: sale.PaymentCard,
		Items:         []billing.LineItem{{Description: "Body lotion", Quantity: 2, UnitPrice: 1000}},
	}, &walkIn)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, core.Money(2400), walkIn.Total)

	var voided sale.Sale
	rec = app.do(t, http.MethodPost, "/v1/sales", token, sale.NewSale{
		PaymentMethod: sale.PaymentCard,
		Items:         []billing.LineItem{{Description: "Gift card", Quantity: 1, UnitPrice: 5000}},
	}, &voided)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/v1/sales/"+voided.ID+"/void", token, sale.VoidSale{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(t, http.MethodPost, "/v1/sales/"+voided.ID+"/void", token, sale.VoidSale{Reason: "Wrong amount"}, &voided)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, sale.StatusVoid, voided.Status)
	assert.NotNil(t, voided.VoidedAt)
	rec = app.do(t, http.MethodPost, "/v1/sales/"+voided.ID+"/void", token, sale.VoidSale{Reason: "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// the appointment is already billed
	rec = app.do(t, http.MethodDelete, "/v1/appointments/"+appt.ID, token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var page core.PageResult[sale.Sale]
	rec = app.do(t, http.MethodGet, "/v1/sales?payment_method=card", token, nil, &page)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, page.Count)

	var sum sale.Summary
	rec = app.do(t, http.MethodGet, "/v1/sales/summary", app.token(t, admin), nil, &sum)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, core.Money(12000), sum.Revenue)
	assert.Equal(t, core.Money(2000), sum.TaxTotal)
	assert.Equal(t, "EUR", sum.Currency)
	assert.ElementsMatch(t, []sale.MethodTotal{
		{PaymentMethod: sale.PaymentCash, Count: 1, Total: 9600},
		{PaymentMethod: sale.PaymentCard, Count: 1, Total: 2400},
	}, sum.ByPaymentMethod)
	assert.ElementsMatch(t, []sale.EmployeeTotal{
		{EmployeeID: emp.ID, Count: 1, Total: 9600},
		{EmployeeID: "", Count: 1, Total: 2400},
	}, sum.ByEmployee)

	rec = app.do(t, http.MethodGet, "/v1/sales/summary?from=2030-01-02&to=2030-01-01", app.token(t, admin), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_saleApi_timestamps(t *testing.T) {
	app := setup(t)
	token := app.token(t, app.createUser(t, "recept", "receptionist"))

	fixed := time.Date(2030, time.March, 14, 10, 30, 0, 0, time.UTC)
	sale.NowFunc = func() time.Time { return fixed }
	t.Cleanup(func() { sale.NowFunc = func() time.Time { return time.Now().UTC() } })

	var s sale.Sale
	rec := app.do(t, http.MethodPost, "/v1/sales", token, sale.NewSale{
		PaymentMethod: sale.PaymentCash,
		Items:         []billing.LineItem{{Description: "Gift card", Quantity: 1, UnitPrice: 5000}},
	}, &s)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, s.SoldAt.Equal(fixed), s.SoldAt)
	assert.True(t, s.CreatedAt.Equal(fixed), s.CreatedAt)

	rec = app.do(t, http.MethodPost, "/v1/sales/"+s.ID+"/void", token, sale.VoidSale{Reason: "Refunded"}, &s)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, s.VoidedAt)
	assert.True(t, s.VoidedAt.Equal(fixed), s.VoidedAt)
}
