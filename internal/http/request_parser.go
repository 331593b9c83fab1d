// Package http provides HTTP server and handler implementations.
//
// This file implements request decoding: JSON bodies checked with struct
// tags, and the query parameters of list and chart views.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"pocketplan/internal/aggregate"
	"pocketplan/internal/core"
)

const maxBodyBytes = 1 << 20

// DefaultChartDays is the chart window when the request names none.
const DefaultChartDays = 30

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// errBadJSON wraps body decoding failures.
var errBadJSON = errors.New("malformed JSON body")

// DecodeJSON reads a JSON body into dst and runs its validate tags.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadJSON)
		}
		return fmt.Errorf("%w: %w", errBadJSON, err)
	}
	if n, ok := dst.(interface{ normalize() }); ok {
		n.normalize()
	}
	return validate.Struct(dst)
}

// ProcessValidationErrors maps each failing field to the rule it broke.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	out := make(map[string]string, len(validationErrors))
	for _, ve := range validationErrors {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

// writeDecodeError answers a failed DecodeJSON call.
func writeDecodeError(w http.ResponseWriter, err error) {
	if fields := ProcessValidationErrors(err); fields != nil {
		ValidationError(fields).Write(w)
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		ErrorResponse(http.StatusRequestEntityTooLarge, "request body too large").Write(w)
		return
	}
	BadRequestError(err.Error()).Write(w)
}

// ParseListQuery reads search, type and order for list views.
func ParseListQuery(query url.Values) aggregate.Query {
	order := strings.ToLower(strings.TrimSpace(query.Get("order")))
	if order != aggregate.OrderOldest {
		order = aggregate.OrderNewest
	}
	typ := strings.TrimSpace(query.Get("type"))
	if typ == "" || strings.EqualFold(typ, aggregate.TypeAll) {
		typ = aggregate.TypeAll
	} else {
		typ = normalizeType(typ)
	}
	return aggregate.Query{
		Search: sanitizeInput(query.Get("search")),
		Type:   typ,
		Order:  order,
	}
}

// ParseChartOptions reads days and granularity. A missing or unparseable
// days value means DefaultChartDays; "all" means the whole data range.
func ParseChartOptions(query url.Values) aggregate.Options {
	opts := aggregate.Options{
		Days:        DefaultChartDays,
		Granularity: aggregate.ParseGranularity(query.Get("granularity")),
	}
	v := strings.TrimSpace(query.Get("days"))
	switch {
	case v == "":
	case strings.EqualFold(v, "all"):
		opts.Days = math.Inf(1)
	default:
		if d, err := strconv.ParseFloat(v, 64); err == nil {
			opts.Days = d
		}
	}
	return opts
}

// normalizeType capitalizes the first letter so "income" matches "Income".
func normalizeType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"max=72"`
}

func (c *credentialsRequest) normalize() { c.Email = strings.TrimSpace(c.Email) }

type registerRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"max=72"`
	Confirm  string `json:"confirm" validate:"max=72"`
}

func (r *registerRequest) normalize() {
	r.Name = sanitizeInput(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

type googleRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

func (e *emailRequest) normalize() { e.Email = strings.TrimSpace(e.Email) }

type passwordResetRequest struct {
	Password string `json:"password" validate:"max=72"`
	Confirm  string `json:"confirm" validate:"max=72"`
}

type profileRequest struct {
	Name        string   `json:"name" validate:"max=100"`
	Email       string   `json:"email" validate:"omitempty,email,max=254"`
	PhotoURL    string   `json:"photoURL" validate:"omitempty,url,max=2048"`
	Password    string   `json:"password" validate:"max=72"`
	Confirm     string   `json:"confirm" validate:"max=72"`
	BaseBalance *float64 `json:"baseBalance"`
}

func (p *profileRequest) normalize() {
	p.Name = sanitizeInput(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.PhotoURL = strings.TrimSpace(p.PhotoURL)
}

func (p profileRequest) patch() core.ProfilePatch {
	return core.ProfilePatch{Name: p.Name, Email: p.Email, PhotoURL: p.PhotoURL}
}

func (p profileRequest) identityChange() bool {
	return p.Name != "" || p.Email != "" || p.PhotoURL != "" || p.Password != "" || p.Confirm != ""
}

type transactionRequest struct {
	Category    string         `json:"category" validate:"max=100"`
	Type        string         `json:"type" validate:"required,oneof=Income Expense"`
	Amount      core.Amount    `json:"amount" validate:"gte=0"`
	Date        core.DateInput `json:"date"`
	Description string         `json:"description" validate:"max=500"`
}

func (t *transactionRequest) normalize() {
	t.Category = sanitizeInput(t.Category)
	t.Type = normalizeType(t.Type)
	t.Description = sanitizeInput(t.Description)
}

func (t transactionRequest) transaction() core.Transaction {
	return core.Transaction{
		Category:    t.Category,
		Type:        core.TxType(t.Type),
		Amount:      t.Amount,
		Date:        t.Date,
		Description: t.Description,
	}
}

type transactionPatchRequest struct {
	Category    *string         `json:"category" validate:"omitempty,max=100"`
	Type        *string         `json:"type" validate:"omitempty,oneof=Income Expense"`
	Amount      *core.Amount    `json:"amount" validate:"omitempty,gte=0"`
	Date        *core.DateInput `json:"date"`
	Description *string         `json:"description" validate:"omitempty,max=500"`
}

func (t *transactionPatchRequest) normalize() {
	if t.Category != nil {
		*t.Category = sanitizeInput(*t.Category)
	}
	if t.Type != nil {
		*t.Type = normalizeType(*t.Type)
	}
	if t.Description != nil {
		*t.Description = sanitizeInput(*t.Description)
	}
}

func (t transactionPatchRequest) patch() core.TransactionPatch {
	p := core.TransactionPatch{
		Category:    t.Category,
		Amount:      t.Amount,
		Date:        t.Date,
		Description: t.Description,
	}
	if t.Type != nil {
		typ := core.TxType(*t.Type)
		p.Type = &typ
	}
	return p
}

type goalRequest struct {
	Name   string      `json:"name" validate:"required,max=100"`
	Type   string      `json:"type" validate:"required,oneof=Saving Expense"`
	Amount core.Amount `json:"amount" validate:"gte=0"`
	Target core.Amount `json:"target" validate:"gte=0"`
}

func (g *goalRequest) normalize() {
	g.Name = sanitizeInput(g.Name)
	g.Type = normalizeType(g.Type)
}

func (g goalRequest) goal() core.Goal {
	return core.Goal{
		Name:   g.Name,
		Type:   core.GoalType(g.Type),
		Amount: g.Amount,
		Target: g.Target,
	}
}

type goalPatchRequest struct {
	Name   *string      `json:"name" validate:"omitempty,max=100"`
	Type   *string      `json:"type" validate:"omitempty,oneof=Saving Expense"`
	Amount *core.Amount `json:"amount" validate:"omitempty,gte=0"`
	Target *core.Amount `json:"target" validate:"omitempty,gte=0"`
}

func (g *goalPatchRequest) normalize() {
	if g.Name != nil {
		*g.Name = sanitizeInput(*g.Name)
	}
	if g.Type != nil {
		*g.Type = normalizeType(*g.Type)
	}
}

func (g goalPatchRequest) patch() core.GoalPatch {
	p := core.GoalPatch{Name: g.Name, Amount: g.Amount, Target: g.Target}
	if g.Type != nil {
		typ := core.GoalType(*g.Type)
		p.Type = &typ
	}
	return p
}
