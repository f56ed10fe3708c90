package bill

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/frontdesk-api/internal/handler/handlertest"
	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/render/pdf"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/service/bill"
	docservice "github.com/jwalitptl/frontdesk-api/internal/service/document"
	"github.com/jwalitptl/frontdesk-api/internal/store/memory"
)

func newHandler(t *testing.T) (*Handler, repository.BillRepository) {
	t.Helper()
	s := memory.New()
	bills := document.NewBillRepository(s)
	docs := docservice.NewService(bills, document.NewCertificateRepository(s), pdf.NewRenderer("Test Clinic"))
	return NewHandler(bill.NewService(bills), docs), bills
}

func seedBill(t *testing.T, repo repository.BillRepository, patientID string, created time.Time) *model.Bill {
	t.Helper()
	b := &model.Bill{
		Base:          model.Base{CreatedAt: created},
		PatientID:     patientID,
		PatientName:   "Jane Doe",
		RoomCharges:   500,
		MedicineCosts: 200,
		DoctorFees:    300,
		Total:         1000,
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestListForPatientNewestFirst(t *testing.T) {
	h, bills := newHandler(t)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	older := seedBill(t, bills, "p1", base)
	newer := seedBill(t, bills, "p1", base.Add(time.Hour))
	seedBill(t, bills, "p2", base)

	w := handlertest.Do(handlertest.Router(h, handlertest.As("p1", model.UserRolePatient)), http.MethodGet, "/api/v1/patients/p1/bills", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got []model.Bill
	require.NoError(t, json.Unmarshal(handlertest.Decode(w).Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	w = handlertest.Do(handlertest.Router(h, handlertest.As("p2", model.UserRolePatient)), http.MethodGet, "/api/v1/patients/p1/bills", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDownloadInvoice(t *testing.T) {
	h, bills := newHandler(t)
	b := seedBill(t, bills, "p1", time.Now())
	r := handlertest.Router(h, handlertest.As("p1", model.UserRolePatient))

	w := handlertest.Do(r, http.MethodGet, "/api/v1/bills/"+b.ID+"/invoice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice_Jane_Doe.pdf")
	assert.True(t, len(w.Body.Bytes()) > 4 && string(w.Body.Bytes()[:4]) == "%PDF")

	w = handlertest.Do(handlertest.Router(h, handlertest.As("p2", model.UserRolePatient)), http.MethodGet, "/api/v1/bills/"+b.ID+"/invoice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = handlertest.Do(r, http.MethodGet, "/api/v1/bills/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
