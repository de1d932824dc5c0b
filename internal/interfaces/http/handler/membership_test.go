package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etribe/portal/internal/application/groupdata"
	appmembership "github.com/etribe/portal/internal/application/membership"
	"github.com/etribe/portal/internal/domain/membership"
	"github.com/etribe/portal/internal/interfaces/http/dto"
)

func TestMembershipHandler_Members(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(membership.MemberStatusPending.Endpoint(), func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{"status":true,"data":[{"id":3,"name":"Ravi","mobile":"9876543210"}]}`)
	})
	g := newGateway(t, mux)
	g.signIn(t, "admin")

	w, env := g.do(t, http.MethodGet, "/api/v1/members/pending", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var members []membership.Member
	require.NoError(t, json.Unmarshal(env.Data, &members))
	require.Len(t, members, 1)
	assert.Equal(t, "3", members[0].ID.String())

	w, env = g.do(t, http.MethodGet, "/api/v1/members/banned", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, env.Error.Code)
}

func TestMembershipHandler_RequiresSession(t *testing.T) {
	g := newGateway(t, http.NewServeMux())

	w, env := g.do(t, http.MethodGet, "/api/v1/events", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, env.Error.Code)
}

func TestMembershipHandler_UpstreamFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(appmembership.EndpointCirculars, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<b>Warning</b>: mysqli {"status":false,"message":"Database unavailable"}`))
	})
	g := newGateway(t, mux)
	g.signIn(t, "user")

	w, env := g.do(t, http.MethodGet, "/api/v1/circulars", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.ErrCodeUpstream, env.Error.Code)
	assert.Equal(t, "Database unavailable", env.Error.Message)
}

func TestMembershipHandler_DocumentTypeCRUD(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(appmembership.EndpointDocumentTypeCreate, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PAN Card", body["name"])
		respond(w, `{"status":true,"message":"Created"}`)
	})
	mux.HandleFunc(appmembership.EndpointDocumentTypeDelete+"4", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		respond(w, `{"status":false,"message":"Type is in use"}`)
	})
	g := newGateway(t, mux)
	g.signIn(t, "admin")

	w, env := g.do(t, http.MethodPost, "/api/v1/document-types", map[string]any{"name": "  PAN Card "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Created", env.Message)

	w, env = g.do(t, http.MethodPost, "/api/v1/document-types", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)

	w, env = g.do(t, http.MethodDelete, "/api/v1/document-types/4", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Type is in use", env.Error.Message)
}

func TestMembershipHandler_UploadDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(appmembership.EndpointDocumentUpload, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "7", r.FormValue("user_id"))
		assert.Equal(t, "2", r.FormValue("document_type_id"))
		_, hdr, err := r.FormFile("document")
		if assert.NoError(t, err) {
			assert.Equal(t, "pan.pdf", hdr.Filename)
		}
		respond(w, `{"status":true,"message":"Saved"}`)
	})
	g := newGateway(t, mux)
	g.signIn(t, "user")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("document_type_id", "2"))
	fw, err := mw.CreateFormFile("document", "pan.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env := g.serve(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Saved", env.Message)

	w, _ = g.do(t, http.MethodPost, "/api/v1/documents", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMembershipHandler_Payments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(appmembership.EndpointPayments, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("user_id"))
		respond(w, `[{"id":1,"user_id":7,"amount":"1500.50"},{"id":2,"user_id":7,"amount":499.5}]`)
	})
	g := newGateway(t, mux)
	g.signIn(t, "user")

	w, env := g.do(t, http.MethodGet, "/api/v1/payments?user_id=7", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Payments []membership.Payment `json:"payments"`
		Total    string               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Len(t, resp.Payments, 2)
	assert.Equal(t, "2000.00", resp.Total)
}

func TestMembershipHandler_ApplicantStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(appmembership.EndpointJobApplicantStatus+"12", func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{"status":true}`)
	})
	g := newGateway(t, mux)
	g.signIn(t, "admin")

	w, env := g.do(t, http.MethodPut, "/api/v1/job-applicants/12/status", StatusRequest{Status: membership.ApplicantShortlisted})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Applicant updated", env.Message)

	w, _ = g.do(t, http.MethodPut, "/api/v1/job-applicants/12/status", StatusRequest{Status: "promoted"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGroupDataHandler(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(groupdata.EndpointGroupData, func(w http.ResponseWriter, r *http.Request) {
		respond(w, `{"status":true,"data":{"id":1,"name":"Chamber of Commerce"}}`)
	})
	g := newGateway(t, mux)

	// no session: nothing cached yet, so the error surfaces
	w, env := g.do(t, http.MethodGet, "/api/v1/group-data", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)

	g.signIn(t, "admin")
	w, env = g.do(t, http.MethodGet, "/api/v1/group-data", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data membership.GroupData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Chamber of Commerce", data.Name)

	_, env = g.do(t, http.MethodGet, "/api/v1/group-data/status", nil)
	var status groupdata.Status
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.NotNil(t, status.FetchedAt)
	assert.Empty(t, status.Error)
}
