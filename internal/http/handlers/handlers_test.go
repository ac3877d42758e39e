package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/media"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/session"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
	"github.com/yungbote/draftsync-backend/internal/services"
)

// fakeDrafts implements only what each test needs; the embedded interface
// panics on anything else.
type fakeDrafts struct {
	services.DraftService

	commit   func(m session.Mutation) (session.Outcome, error)
	submit   func(m session.Mutation) (session.Ticket, error)
	mark     func(articleID, mediaID uuid.UUID) error
	deletion media.CommitResult
	lastMut  session.Mutation
}

func (f *fakeDrafts) Commit(_ context.Context, _ uuid.UUID, m session.Mutation) (session.Outcome, error) {
	f.lastMut = m
	return f.commit(m)
}

func (f *fakeDrafts) Submit(_ context.Context, _ uuid.UUID, m session.Mutation) (session.Ticket, error) {
	f.lastMut = m
	return f.submit(m)
}

func (f *fakeDrafts) MarkMedia(_ context.Context, articleID, mediaID uuid.UUID) error {
	return f.mark(articleID, mediaID)
}

func (f *fakeDrafts) CommitDeletion(context.Context) (media.CommitResult, error) {
	return f.deletion, nil
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Field   string `json:"field"`
	} `json:"error"`
	Value *types.DraftView `json:"value"`
}

func newTestRouter(t *testing.T, drafts services.DraftService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	dh := NewDraftHandler(log, drafts)
	mh := NewMediaHandler(log, drafts)
	r := gin.New()
	r.PATCH("/api/drafts/:id/title", dh.UpdateTitle)
	r.PATCH("/api/drafts/:id/description", dh.UpdateDescription)
	r.POST("/api/drafts/:id/publish", dh.Publish)
	r.DELETE("/api/drafts/:id/media/:mediaId", mh.Mark)
	r.POST("/api/media/commit-deletion", mh.CommitDeletion)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sampleDraft(id uuid.UUID, title string) types.Draft {
	return types.Draft{
		ArticleID: id,
		Title:     title,
		Slug:      "orig",
		Status:    types.StatusDraft,
		Type:      types.TypeDefault,
		Content:   types.DefaultVariant{},
	}
}

func TestUpdateTitleReturnsCommittedDraft(t *testing.T) {
	id := uuid.New()
	fake := &fakeDrafts{commit: func(m session.Mutation) (session.Outcome, error) {
		return session.Outcome{ID: 1, Draft: sampleDraft(id, m.(session.Title).Value)}, nil
	}}
	rec := do(newTestRouter(t, fake), http.MethodPatch, "/api/drafts/"+id.String()+"/title", `{"value":"Campus News"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Value types.DraftView `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Value.Title != "Campus News" {
		t.Fatalf("title: want=%q got=%q", "Campus News", body.Value.Title)
	}
}

func TestUpdateTitleValidationIs422(t *testing.T) {
	id := uuid.New()
	fake := &fakeDrafts{commit: func(session.Mutation) (session.Outcome, error) {
		return session.Outcome{}, domainagg.FieldError("Drafts.Session.title", domainagg.FieldTitle, "title is required")
	}}
	rec := do(newTestRouter(t, fake), http.MethodPatch, "/api/drafts/"+id.String()+"/title", `{"value":""}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: want=422 got=%d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(domainagg.CodeValidation) || body.Error.Field != domainagg.FieldTitle {
		t.Fatalf("error: want=validation/title got=%s/%s", body.Error.Code, body.Error.Field)
	}
	if body.Value != nil {
		t.Fatalf("value: want none got=%+v", body.Value)
	}
}

func TestRemoteFailureReturnsRestoredDraft(t *testing.T) {
	id := uuid.New()
	fake := &fakeDrafts{commit: func(session.Mutation) (session.Outcome, error) {
		err := domainagg.Unavailable("Drafts.Session.status", "store unreachable", errors.New("dial tcp"))
		return session.Outcome{ID: 3, Draft: sampleDraft(id, "orig title"), Err: err}, err
	}}
	rec := do(newTestRouter(t, fake), http.MethodPost, "/api/drafts/"+id.String()+"/publish", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: want=503 got=%d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(domainagg.CodeRemoteUnavailable) {
		t.Fatalf("code: want=%s got=%s", domainagg.CodeRemoteUnavailable, body.Error.Code)
	}
	if body.Value == nil || body.Value.Status != types.StatusDraft || body.Value.Title != "orig title" {
		t.Fatalf("restored value: got=%+v", body.Value)
	}
	if st, ok := fake.lastMut.(session.Status); !ok || st.To != types.StatusPublished {
		t.Fatalf("mutation: want=publish got=%#v", fake.lastMut)
	}
}

func TestDescriptionIsAccepted(t *testing.T) {
	id := uuid.New()
	fake := &fakeDrafts{submit: func(m session.Mutation) (session.Ticket, error) {
		d := sampleDraft(id, "t")
		d.Content = types.DefaultVariant{Description: m.(session.Description).Value}
		return session.Ticket{ID: 7, Draft: d}, nil
	}}
	rec := do(newTestRouter(t, fake), http.MethodPatch, "/api/drafts/"+id.String()+"/description", `{"value":"draft desc"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: want=202 got=%d", rec.Code)
	}
	var body struct {
		Value struct {
			MutationID uint64          `json:"mutation_id"`
			Draft      types.DraftView `json:"draft"`
		} `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Value.MutationID != 7 {
		t.Fatalf("mutation id: want=7 got=%d", body.Value.MutationID)
	}
	if body.Value.Draft.Default == nil || body.Value.Draft.Default.Description != "draft desc" {
		t.Fatalf("optimistic description: got=%+v", body.Value.Draft.Default)
	}
}

func TestMalformedRequestsAre400(t *testing.T) {
	r := newTestRouter(t, &fakeDrafts{})
	cases := []struct {
		name, method, path, body string
	}{
		{"bad article id", http.MethodPatch, "/api/drafts/nope/title", `{"value":"x"}`},
		{"bad json", http.MethodPatch, "/api/drafts/" + uuid.NewString() + "/title", `{"value":`},
		{"bad media id", http.MethodDelete, "/api/drafts/" + uuid.NewString() + "/media/nope", ""},
	}
	for _, tc := range cases {
		if rec := do(r, tc.method, tc.path, tc.body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: want=400 got=%d", tc.name, rec.Code)
		}
	}
}

func TestMarkMediaNotFound(t *testing.T) {
	fake := &fakeDrafts{mark: func(uuid.UUID, uuid.UUID) error {
		return domainagg.NewError(domainagg.CodeNotFound, "Media.Mark", "media not found", nil)
	}}
	path := "/api/drafts/" + uuid.NewString() + "/media/" + uuid.NewString()
	if rec := do(newTestRouter(t, fake), http.MethodDelete, path, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status: want=404 got=%d", rec.Code)
	}
}

func TestCommitDeletionListsDeletedIDs(t *testing.T) {
	gone := uuid.New()
	fake := &fakeDrafts{deletion: media.CommitResult{DeletedIDs: []uuid.UUID{gone}}}
	rec := do(newTestRouter(t, fake), http.MethodPost, "/api/media/commit-deletion", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	var body struct {
		Value media.CommitResult `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Value.DeletedIDs) != 1 || body.Value.DeletedIDs[0] != gone {
		t.Fatalf("deleted ids: want=[%s] got=%v", gone, body.Value.DeletedIDs)
	}
}
