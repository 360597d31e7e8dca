package paging

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Direction indica hacia dónde avanza un cursor.
type Direction string

const (
	Next Direction = "next"
	Prev Direction = "prev"
)

func (d Direction) valid() bool {
	return d == Next || d == Prev
}

// Forward es true si el recorrido sigue el orden configurado.
func (d Direction) Forward() bool {
	return d != Prev
}

// Key es un par campo/valor del ancla de un cursor.
type Key struct {
	Field string
	Value interface{}
}

// Cursor describe la frontera desde la que se reanuda el recorrido.
// Anchor está alineado por posición con el SortSpec; Filters conserva los
// filtros de la petición original para reconstruir el mismo filtro base.
// Los valores time.Time del ancla se decodifican en UTC.
type Cursor struct {
	Direction Direction
	Anchor    []Key
	Filters   map[string]string
}

// Filter devuelve un filtro retenido (cadena vacía si no está).
func (c *Cursor) Filter(name string) string {
	if c == nil {
		return ""
	}
	return c.Filters[name]
}

// ---------- Codec ----------

// Tipos de valor soportados en el ancla.
const (
	kindInt    = "i"
	kindFloat  = "f"
	kindString = "s"
	kindBool   = "b"
	kindTime   = "t"
)

type wireKey struct {
	Field string `json:"f"`
	Kind  string `json:"t"`
	Value string `json:"v"`
}

type wireCursor struct {
	Direction Direction         `json:"d"`
	Anchor    []wireKey         `json:"k"`
	Filters   map[string]string `json:"q,omitempty"`
}

var tokenEncoding = base64.RawURLEncoding

// Encode serializa el cursor en un token opaco (base64url de un JSON compacto).
func Encode(c Cursor) (string, error) {
	if !c.Direction.valid() {
		return "", fmt.Errorf("paging: unknown cursor direction %q", c.Direction)
	}
	if len(c.Anchor) == 0 {
		return "", fmt.Errorf("paging: cursor without anchor")
	}

	w := wireCursor{Direction: c.Direction, Anchor: make([]wireKey, 0, len(c.Anchor))}
	if len(c.Filters) > 0 {
		w.Filters = c.Filters
	}
	for _, k := range c.Anchor {
		wk, err := encodeKey(k)
		if err != nil {
			return "", err
		}
		w.Anchor = append(w.Anchor, wk)
	}

	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("paging: marshal cursor: %w", err)
	}
	return tokenEncoding.EncodeToString(data), nil
}

// Decode es la inversa de Encode. Cualquier token que no tenga exactamente la
// forma esperada devuelve ErrInvalidCursor.
func Decode(token string) (*Cursor, error) {
	data, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return nil, invalidCursor("not base64url")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w wireCursor
	if err := dec.Decode(&w); err != nil {
		return nil, invalidCursor("malformed document")
	}
	// tras el documento solo puede quedar espacio en blanco
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, invalidCursor("trailing data")
	}
	if !w.Direction.valid() {
		return nil, invalidCursor("unknown direction")
	}
	if len(w.Anchor) == 0 {
		return nil, invalidCursor("empty anchor")
	}

	c := &Cursor{Direction: w.Direction, Anchor: make([]Key, 0, len(w.Anchor))}
	seen := make(map[string]struct{}, len(w.Anchor))
	for _, wk := range w.Anchor {
		if wk.Field == "" {
			return nil, invalidCursor("empty anchor field")
		}
		if _, dup := seen[wk.Field]; dup {
			return nil, invalidCursor("duplicated anchor field")
		}
		seen[wk.Field] = struct{}{}

		v, err := decodeValue(wk.Kind, wk.Value)
		if err != nil {
			return nil, invalidCursor(fmt.Sprintf("field %q: %v", wk.Field, err))
		}
		c.Anchor = append(c.Anchor, Key{Field: wk.Field, Value: v})
	}
	if len(w.Filters) > 0 {
		c.Filters = w.Filters
	}
	return c, nil
}

func encodeKey(k Key) (wireKey, error) {
	wk := wireKey{Field: k.Field}
	if k.Field == "" {
		return wk, fmt.Errorf("paging: anchor with empty field")
	}

	switch v := k.Value.(type) {
	case int64:
		wk.Kind, wk.Value = kindInt, strconv.FormatInt(v, 10)
	case int:
		wk.Kind, wk.Value = kindInt, strconv.FormatInt(int64(v), 10)
	case int32:
		wk.Kind, wk.Value = kindInt, strconv.FormatInt(int64(v), 10)
	case float64:
		wk.Kind, wk.Value = kindFloat, strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		wk.Kind, wk.Value = kindString, v
	case bool:
		wk.Kind, wk.Value = kindBool, strconv.FormatBool(v)
	case time.Time:
		// las anclas temporales viajan siempre en UTC
		wk.Kind, wk.Value = kindTime, v.UTC().Format(time.RFC3339Nano)
	default:
		return wk, fmt.Errorf("paging: unsupported anchor value %T for field %q", k.Value, k.Field)
	}
	return wk, nil
}

func decodeValue(kind, raw string) (interface{}, error) {
	switch kind {
	case kindInt:
		return strconv.ParseInt(raw, 10, 64)
	case kindFloat:
		return strconv.ParseFloat(raw, 64)
	case kindString:
		return raw, nil
	case kindBool:
		return strconv.ParseBool(raw)
	case kindTime:
		return time.Parse(time.RFC3339Nano, raw)
	default:
		return nil, fmt.Errorf("unknown value kind %q", kind)
	}
}
