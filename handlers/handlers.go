package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"piplock/lockfile"
	"piplock/pep440"
	"piplock/requirements"
	"piplock/storage"
	"piplock/verify"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type Storage interface {
	ListReleasesFiltered(ctx context.Context, name string, includeYanked bool) ([]storage.Release, error)
	GetRelease(ctx context.Context, name, version string) (storage.Release, error)
	UpsertRelease(ctx context.Context, rel storage.Release) error
	DeleteRelease(ctx context.Context, name, version string) error
}

type Manager interface {
	Refresh(ctx context.Context, names ...string) error
}

type Compiler interface {
	Compile(ctx context.Context, src *requirements.Sources) (*lockfile.Lockfile, error)
}

type Verifier interface {
	Verify(ctx context.Context, lf *lockfile.Lockfile) (*verify.Report, error)
}

type Handler struct {
	Store    Storage
	Manager  Manager
	Resolver Compiler
	Verifier Verifier
	Log      *logrus.Logger
}

func (h *Handler) ListReleases(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")

	includeYanked := false
	if raw := r.URL.Query().Get("include_yanked"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "invalid include_yanked value", http.StatusBadRequest)
			return
		}
		includeYanked = parsed
	}

	releases, err := h.Store.ListReleasesFiltered(r.Context(), pep440.NormalizeName(name), includeYanked)
	if err != nil {
		h.Log.WithError(err).Error("listing releases with filters")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(releases); err != nil {
		h.Log.WithError(err).Error("encoding release list response")
	}
}

func (h *Handler) GetRelease(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version := chi.URLParam(r, "version")

	if name == "" || version == "" {
		http.Error(w, "missing path parameters", http.StatusBadRequest)
		return
	}

	rel, err := h.Store.GetRelease(r.Context(), pep440.NormalizeName(name), version)
	if err != nil {
		h.Log.WithFields(logrus.Fields{
			"name":    name,
			"version": version,
		}).WithError(err).Error("fetching release")
		http.Error(w, "release not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rel); err != nil {
		h.Log.WithError(err).Error("encoding single release response")
	}
}

func (h *Handler) CreateRelease(w http.ResponseWriter, r *http.Request) {
	var rel storage.Release
	if err := json.NewDecoder(r.Body).Decode(&rel); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if rel.Name == "" || rel.Version == "" {
		http.Error(w, "name and version are required", http.StatusBadRequest)
		return
	}
	if _, err := pep440.ParseVersion(rel.Version); err != nil {
		http.Error(w, "invalid version", http.StatusBadRequest)
		return
	}
	rel.Name = pep440.NormalizeName(rel.Name)

	existing, err := h.Store.GetRelease(r.Context(), rel.Name, rel.Version)
	if err == nil && existing.Name != "" {
		http.Error(w, "release already exists", http.StatusConflict)
		return
	}

	if err := h.Store.UpsertRelease(r.Context(), rel); err != nil {
		h.Log.WithError(err).Error("creating release")
		http.Error(w, "failed to create release", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

type ReleaseUpdateRequest struct {
	Requires  *[]string `json:"requires,omitempty"`
	SourceURL *string   `json:"source_url,omitempty"`
	SHA256    *string   `json:"sha256,omitempty"`
	Yanked    *bool     `json:"yanked,omitempty"`
}

func (h *Handler) UpdateRelease(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version := chi.URLParam(r, "version")

	var input ReleaseUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	current, err := h.Store.GetRelease(r.Context(), pep440.NormalizeName(name), version)
	if err != nil {
		http.Error(w, "release not found", http.StatusNotFound)
		return
	}

	if input.Requires != nil {
		current.Requires = *input.Requires
	}
	if input.SourceURL != nil {
		current.SourceURL = *input.SourceURL
	}
	if input.SHA256 != nil {
		current.SHA256 = *input.SHA256
	}
	if input.Yanked != nil {
		current.Yanked = *input.Yanked
	}

	if err := h.Store.UpsertRelease(r.Context(), current); err != nil {
		h.Log.WithError(err).Error("updating release")
		http.Error(w, "failed to update release", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) DeleteRelease(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	version := chi.URLParam(r, "version")

	if name == "" || version == "" {
		http.Error(w, "missing path parameters", http.StatusBadRequest)
		return
	}

	if err := h.Store.DeleteRelease(r.Context(), pep440.NormalizeName(name), version); err != nil {
		h.Log.WithError(err).Error("deleting release")
		http.Error(w, "failed to delete release", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshHandler re-fetches cached index metadata, scoped to the
// packages named by repeated "name" query parameters when present.
func (h *Handler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Refresh(r.Context(), r.URL.Query()["name"]...); err != nil {
		h.Log.WithError(err).Error("failed to refresh index cache")
		http.Error(w, "failed to refresh index cache", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// VerifyLockfile accepts lockfile text and responds with the
// verification report.
func (h *Handler) VerifyLockfile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	lf, err := lockfile.Parse(string(body))
	if err != nil {
		http.Error(w, "invalid lockfile: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	report, err := h.Verifier.Verify(r.Context(), lf)
	if err != nil {
		h.Log.WithError(err).Error("verifying lockfile")
		http.Error(w, "failed to verify lockfile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.Log.WithError(err).Error("encoding verify report response")
	}
}

type CompileRequest struct {
	Requirements string `json:"requirements"`
	Constraints  string `json:"constraints,omitempty"`
}

// CompileRequirements accepts requirement and constraint file text and
// responds with the compiled lockfile as plain text.
func (h *Handler) CompileRequirements(w http.ResponseWriter, r *http.Request) {
	var input CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.Requirements == "" {
		http.Error(w, "requirements text is required", http.StatusBadRequest)
		return
	}

	src, err := parseCompileInput(input)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	lf, err := h.Resolver.Compile(r.Context(), src)
	if err != nil {
		h.Log.WithError(err).Error("compiling requirements")
		http.Error(w, "failed to compile: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, lf.Canonical()); err != nil {
		h.Log.WithError(err).Error("writing compiled lockfile response")
	}
}

func parseCompileInput(input CompileRequest) (*requirements.Sources, error) {
	reqFile, err := requirements.ParseFile("requirements.in", input.Requirements)
	if err != nil {
		return nil, err
	}

	src := &requirements.Sources{Requirements: reqFile.Requirements}

	if input.Constraints != "" {
		conFile, err := requirements.ParseFile("constraints.txt", input.Constraints)
		if err != nil {
			return nil, err
		}
		for i := range conFile.Requirements {
			conFile.Requirements[i].Origin = "-c constraints.txt"
		}
		src.Constraints = conFile.Requirements
	}

	return src, nil
}
