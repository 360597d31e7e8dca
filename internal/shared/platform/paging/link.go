package paging

import (
	"fmt"
	"net/url"
	"strings"

	qs "github.com/google/go-querystring/query"
)

// linkQuery son los parámetros que viajan en la URL; los filtros retenidos
// van dentro del token.
type linkQuery struct {
	Token string `url:"token"`
	Limit int    `url:"limit"`
}

// LinkBuilder construye URLs absolutas de paginación para un recurso.
type LinkBuilder struct {
	BaseURL string // ej. "https://api.example.com"
	Path    string // ej. "/v2/score/12"
}

func NewLinkBuilder(baseURL, path string) LinkBuilder {
	return LinkBuilder{BaseURL: strings.TrimRight(baseURL, "/"), Path: path}
}

// Link devuelve nil si no hay cursor en esa dirección.
func (b LinkBuilder) Link(c *Cursor, limit int) (*string, error) {
	if c == nil {
		return nil, nil
	}
	token, err := Encode(*c)
	if err != nil {
		return nil, err
	}

	values, err := qs.Values(linkQuery{Token: token, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("paging: encode link query: %w", err)
	}

	u := url.URL{Path: b.Path, RawQuery: values.Encode()}
	link := b.BaseURL + u.String()
	return &link, nil
}

// Links resuelve los enlaces next/prev de una página.
func Links[T Record](b LinkBuilder, page *Page[T], limit int) (next, prev *string, err error) {
	if next, err = b.Link(page.Next, limit); err != nil {
		return nil, nil, err
	}
	if prev, err = b.Link(page.Prev, limit); err != nil {
		return nil, nil, err
	}
	return next, prev, nil
}
