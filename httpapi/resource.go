package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-crud-service/apperror"
	"github.com/goliatone/go-crud-service/query"
	"github.com/goliatone/go-crud-service/service"
)

// Request validation codes.
const (
	CodeBodyInvalid    = "REQUEST.BODY_INVALID"
	CodeFilterRequired = "REQUEST.FILTER_REQUIRED"
)

// HeaderSocketClientID identifies the caller's realtime connection.
const HeaderSocketClientID = "X-Socket-Client-Id"

// Resource exposes a service as REST routes.
type Resource[T any] struct {
	Service *service.Service[T]
	Errors  *ErrorFilter
	Query   query.ParseOptions

	// Scope adds criteria taken from the request, usually path parameters,
	// to every lookup.
	Scope func(c *gin.Context) map[string]any
	// Subject names the cache subject of the request. Reads go through the
	// cache only when it returns a non empty subject.
	Subject func(c *gin.Context) string
	// Prepare adjusts a create draft before it reaches the service.
	Prepare func(c *gin.Context, draft *T)
}

// ReadOnly registers the list, count and get routes.
func (r *Resource[T]) ReadOnly(g gin.IRoutes) {
	g.GET("", r.list)
	g.GET("/all", r.listAll)
	g.GET("/count", r.count)
	g.GET("/:id", r.get)
}

// Register registers every route.
func (r *Resource[T]) Register(g gin.IRoutes) {
	r.ReadOnly(g)
	g.POST("", r.create)
	g.PATCH("/:id", r.update)
	g.PATCH("", r.updateMany)
	g.DELETE("/:id", r.remove)
	g.DELETE("", r.removeMany)
}

func (r *Resource[T]) parseOptions() query.ParseOptions {
	opts := r.Query
	if opts.Pagination == (query.Pagination{}) {
		opts.Pagination = r.Service.Pagination()
	}
	return opts
}

func (r *Resource[T]) spec(c *gin.Context) (query.Specification, error) {
	spec, err := query.Parse(c.Request.URL.Query(), r.parseOptions())
	if err != nil {
		return query.Specification{}, err
	}
	if scope := r.scope(c); len(scope) > 0 {
		filter := make(map[string]any, len(spec.Filter)+len(scope))
		for k, v := range spec.Filter {
			filter[k] = v
		}
		for k, v := range scope {
			filter[k] = v
		}
		spec.Filter = filter
	}
	return spec, nil
}

func (r *Resource[T]) scope(c *gin.Context) map[string]any {
	if r.Scope == nil {
		return nil
	}
	return r.Scope(c)
}

func (r *Resource[T]) subject(c *gin.Context) string {
	if r.Subject == nil || !r.Service.CacheHelper().Enabled() {
		return ""
	}
	return r.Subject(c)
}

// criteria merges the scope with extra, the scope winning.
func (r *Resource[T]) criteria(c *gin.Context, extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range r.scope(c) {
		out[k] = v
	}
	return out
}

func (r *Resource[T]) options(c *gin.Context) service.Options {
	opts := service.Options{
		Lean:           c.Query("lean") == "true",
		Select:         splitList(c.Query("select")),
		SocketClientID: c.GetHeader(HeaderSocketClientID),
	}
	if acc, ok := Viewer(c); ok {
		opts.Viewer = acc
	}
	return opts
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *Resource[T]) list(c *gin.Context) {
	ctx := Controller(c)
	spec, err := r.spec(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var page service.Page[T]
	if subject := r.subject(c); subject != "" {
		page, err = r.Service.CachedListPaginate(ctx, subject, spec, r.options(c))
	} else {
		page, err = r.Service.ListPaginate(ctx, spec, r.options(c))
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	RespondPage(c, page)
}

func (r *Resource[T]) listAll(c *gin.Context) {
	ctx := Controller(c)
	spec, err := r.spec(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var records []T
	if subject := r.subject(c); subject != "" {
		records, err = r.Service.CachedList(ctx, subject, spec, r.options(c))
	} else {
		records, err = r.Service.List(ctx, spec, r.options(c))
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	Respond(c, http.StatusOK, records)
}

func (r *Resource[T]) count(c *gin.Context) {
	ctx := Controller(c)
	spec, err := r.spec(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	n, err := r.Service.Count(ctx, spec.Filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	Respond(c, http.StatusOK, gin.H{"total": n})
}

func (r *Resource[T]) get(c *gin.Context) {
	ctx := Controller(c)
	opts := r.options(c)
	id := c.Param("id")

	var (
		record *T
		err    error
	)
	if subject := r.subject(c); subject != "" && r.Scope == nil {
		record, err = r.Service.CachedGetByID(ctx, subject, id, opts)
	} else {
		record, err = r.Service.GetOneBy(ctx, r.criteria(c, map[string]any{"id": id}), opts)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	Respond(c, http.StatusOK, record)
}

func (r *Resource[T]) create(c *gin.Context) {
	ctx := Controller(c)
	draft, _, err := decodeBody[T](c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if r.Prepare != nil {
		r.Prepare(c, draft)
	}

	record, err := r.Service.Create(ctx, draft, r.options(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	Respond(c, http.StatusCreated, record)
}

func (r *Resource[T]) update(c *gin.Context) {
	ctx := Controller(c)
	draft, fields, err := decodeBody[T](c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	opts := r.options(c)
	opts.Fields = fields
	record, err := r.Service.UpdateOneBy(ctx, r.criteria(c, map[string]any{"id": c.Param("id")}), draft, opts)
	if err != nil {
		_ = c.Error(err)
		return
	}
	Respond(c, http.StatusOK, record)
}

// updateMany requires a filter so an empty query string never rewrites the
// whole table.
func (r *Resource[T]) updateMany(c *gin.Context) {
	ctx := Controller(c)
	spec, err := r.spec(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(spec.Filter) == 0 {
		_ = c.Error(filterRequired())
		return
	}
	draft, fields, err := decodeBody[T](c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	opts := r.options(c)
	opts.Fields = fields
	res, err := r.Service.UpdateBy(ctx, spec.Filter, draft, opts)
	if err != nil {
		_ = c.Error(err)
		return
	}
	Respond(c, http.StatusOK, res)
}

func (r *Resource[T]) remove(c *gin.Context) {
	ctx := Controller(c)
	record, err := r.Service.DeleteOneBy(ctx, r.criteria(c, map[string]any{"id": c.Param("id")}), r.options(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if record == nil {
		_ = c.Error(apperror.NotFound(r.Service.NotFoundCode()))
		return
	}
	Respond(c, http.StatusOK, record)
}

func (r *Resource[T]) removeMany(c *gin.Context) {
	ctx := Controller(c)
	spec, err := r.spec(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(spec.Filter) == 0 {
		_ = c.Error(filterRequired())
		return
	}
	res, err := r.Service.DeleteBy(ctx, spec.Filter, r.options(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	Respond(c, http.StatusOK, res)
}

func filterRequired() error {
	return apperror.Validation([]apperror.Violation{{
		Field:       "filter",
		Constraints: map[string]string{"required": CodeFilterRequired},
	}})
}

// decodeBody reads a JSON object into a new T and returns its top level keys
// in sorted order. The keys restrict which columns an update writes.
func decodeBody[T any](c *gin.Context) (*T, []string, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, nil, bodyInvalid(err.Error())
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil || keys == nil {
		return nil, nil, bodyInvalid("body must be a JSON object")
	}

	draft := new(T)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(draft); err != nil {
		return nil, nil, bodyInvalid(err.Error())
	}

	fields := make([]string, 0, len(keys))
	for k := range keys {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return draft, fields, nil
}

func bodyInvalid(detail string) error {
	return apperror.Validation([]apperror.Violation{{
		Field:       "body",
		Value:       detail,
		Constraints: map[string]string{"json": CodeBodyInvalid},
	}})
}
