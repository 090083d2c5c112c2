package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapconn/internal/params"
	"github.com/leapstack-labs/leapconn/pkg/adapter"
	"github.com/leapstack-labs/leapconn/pkg/core"
)

// Reserved query parameters. Every other parameter is an equality filter.
const (
	paramConnection = "_connection"
	paramColumns    = "_columns"
	paramOrder      = "_order"
	paramLimit      = "_limit"
	paramReturning  = "_returning"
	paramAll        = "_all"

	connectionHeader = "X-Leapconn-Connection"
)

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/backends", s.handleBackends)
	r.Get("/connections", s.handleConnections)
	r.Get("/events", s.handleEvents)

	r.Route("/tables/{table}", func(r chi.Router) {
		r.Get("/", s.handleSelect)
		r.Get("/schema", s.handleSchema)
		r.Post("/rows", s.handleInsert)
		r.Patch("/rows", s.handleUpdate)
		r.Delete("/rows", s.handleDelete)
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type recordsBody struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
}

type writeBody struct {
	RowsAffected int64        `json:"rows_affected"`
	Records      *recordsBody `json:"records,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBackends(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"backends": adapter.ListAdapters()})
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	cfg := s.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"default":     cfg.Default,
		"connections": cfg.ProfileNames(),
		"generation":  s.generation.Load(),
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	q := r.URL.Query()

	opts := core.SelectOptions{OrderBy: q.Get(paramOrder)}
	if cols := q.Get(paramColumns); cols != "" {
		opts.Columns = splitList(cols)
	}
	if v := q.Get(paramLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, core.NewValidationError(core.CodeInvalidLimit, "limit must be an integer, got %q", v))
			return
		}
		opts.Limit = n
	}
	filters, err := queryFilters(q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts.Filters = filters

	s.withConnection(w, r, func(ctx context.Context, conn adapter.Connection) (int, any, error) {
		rs, err := conn.Select(ctx, table, opts)
		if err != nil {
			return 0, nil, missingTableOr(ctx, conn, table, err)
		}
		return http.StatusOK, newRecordsBody(rs), nil
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	s.withConnection(w, r, func(ctx context.Context, conn adapter.Connection) (int, any, error) {
		cols, err := conn.TableInfo(ctx, table)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, map[string]any{
			"table":        table,
			"columns":      cols,
			"primary_keys": cols.PrimaryKeys(),
		}, nil
	})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	rows, err := params.DecodeRows(r.Body)
	if err != nil {
		s.writeError(w, core.NewValidationError(core.CodeInvalidArguments, "%v", err))
		return
	}
	returning := queryBool(r.URL.Query(), paramReturning)

	s.withConnection(w, r, func(ctx context.Context, conn adapter.Connection) (int, any, error) {
		res, err := conn.Insert(ctx, table, rows, core.InsertOptions{ReturnInserted: returning})
		if err != nil {
			return 0, nil, missingTableOr(ctx, conn, table, err)
		}
		return http.StatusCreated, newWriteBody(res.RowsAffected, res.Records), nil
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	set, err := params.DecodeObject(r.Body)
	if err != nil {
		s.writeError(w, core.NewValidationError(core.CodeInvalidArguments, "%v", err))
		return
	}
	q := r.URL.Query()
	filters, err := scopedFilters(q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	returning := queryBool(q, paramReturning)

	s.withConnection(w, r, func(ctx context.Context, conn adapter.Connection) (int, any, error) {
		res, err := conn.Update(ctx, table, set, filters, core.UpdateOptions{ReturnUpdated: returning})
		if err != nil {
			return 0, nil, missingTableOr(ctx, conn, table, err)
		}
		return http.StatusOK, newWriteBody(res.RowsAffected, res.Records), nil
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	filters, err := scopedFilters(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.withConnection(w, r, func(ctx context.Context, conn adapter.Connection) (int, any, error) {
		n, err := conn.Delete(ctx, table, filters)
		if err != nil {
			return 0, nil, missingTableOr(ctx, conn, table, err)
		}
		return http.StatusOK, newWriteBody(n, nil), nil
	})
}

// withConnection runs fn on a fresh connection for the requested profile and
// writes the error response if anything fails.
func (s *Server) withConnection(w http.ResponseWriter, r *http.Request, fn func(context.Context, adapter.Connection) (int, any, error)) {
	name := r.URL.Query().Get(paramConnection)
	if name == "" {
		name = r.Header.Get(connectionHeader)
	}
	token, args, err := s.Config().Profile(name)
	if err != nil {
		s.writeError(w, core.NewValidationError(core.CodeInvalidArguments, "%v", err))
		return
	}

	ctx := r.Context()
	var (
		status int
		body   any
	)
	err = adapter.Use(ctx, token, args, s.logger.With("profile", name), func(conn adapter.Connection) error {
		var err error
		status, body, err = fn(ctx, conn)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, body)
}

// missingTableOr turns a failed operation on a table that does not exist
// into a TABLE_NOT_FOUND error.
func missingTableOr(ctx context.Context, conn adapter.Connection, table string, err error) error {
	if !core.IsDatabase(err) {
		return err
	}
	exists, existsErr := conn.TableExists(ctx, table)
	if existsErr == nil && !exists {
		return adapter.TableNotFound(table)
	}
	return err
}

// writeError reports err as JSON. Server-side failures keep their code but
// only the status text reaches the client; the full error is logged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := core.ErrorCode(err)
	if code == "" {
		code = "INTERNAL"
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "code", code, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: msg}})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrTableNotFound):
		return http.StatusNotFound
	case core.IsValidation(err):
		return http.StatusBadRequest
	case core.IsResource(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newRecordsBody(rs *core.RecordSet) *recordsBody {
	return &recordsBody{Columns: rs.Columns, Rows: rs.Maps(), Count: rs.Len()}
}

func newWriteBody(n int64, rs *core.RecordSet) writeBody {
	body := writeBody{RowsAffected: n}
	if rs != nil {
		body.Records = newRecordsBody(rs)
	}
	return body
}

// queryFilters turns every non-reserved query parameter into an equality
// filter. No filters yields nil, which matches every row.
func queryFilters(q url.Values) (core.Filters, error) {
	var filters core.Filters
	for key, values := range q {
		if strings.HasPrefix(key, "_") {
			continue
		}
		if len(values) != 1 {
			return nil, core.NewValidationError(core.CodeInvalidArguments,
				"filter %q given %d times; only one value per column is supported", key, len(values))
		}
		if filters == nil {
			filters = core.Filters{}
		}
		filters[key] = params.ParseValue(values[0])
	}
	return filters, nil
}

// scopedFilters is queryFilters for writes: touching every row needs _all=true.
func scopedFilters(q url.Values) (core.Filters, error) {
	filters, err := queryFilters(q)
	if err != nil {
		return nil, err
	}
	all := queryBool(q, paramAll)
	switch {
	case all && filters != nil:
		return nil, core.NewValidationError(core.CodeInvalidArguments, "%s cannot be combined with filters", paramAll)
	case !all && filters == nil:
		return nil, core.NewValidationError(core.CodeInvalidArguments,
			"refusing to touch every row: pass filters or %s=true", paramAll)
	}
	return filters, nil
}

func queryBool(q url.Values, key string) bool {
	b, _ := strconv.ParseBool(q.Get(key))
	return b
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// handleEvents streams config reload events as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			payload := map[string]any{"generation": ev.Generation, "connections": ev.Profiles}
			name := "reload"
			if ev.Err != nil {
				name = "reload_error"
				payload["error"] = ev.Err.Error()
			}
			data, _ := json.Marshal(payload)
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
			flusher.Flush()
		}
	}
}
