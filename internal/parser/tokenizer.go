package parser

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/common/model"

	"nimbus-benchmark-exporter/internal/registry"
)

var (
	ErrInvalidMetricName = errors.New("invalid metric name")
	ErrUnbalancedBraces  = errors.New("unbalanced label braces")
	ErrInvalidLabel      = errors.New("invalid label pair")
	ErrDuplicateLabel    = errors.New("duplicate label name")
	ErrAmbiguousLabel    = errors.New("ambiguous unquoted label value")
	ErrMissingValue      = errors.New("missing sample value")
	ErrInvalidValue      = errors.New("sample value is not a number")
	ErrTrailingTokens    = errors.New("unexpected tokens after sample value")
)

// Sample is one decoded exposition line.
type Sample struct {
	Name   string
	Labels registry.Labels
	Value  float64
}

// ParseLine decodes `name{k="v",...} value [timestamp]`. The label block is
// optional. Quoted label values understand \", \\ and \n escapes; unquoted
// values are accepted when they contain no separator characters.
func ParseLine(line string) (Sample, error) {
	t := tokenizer{src: strings.TrimSpace(line)}

	name := t.name()
	if !model.IsValidMetricName(model.LabelValue(name)) {
		return Sample{}, errors.Wrapf(ErrInvalidMetricName, "%q", name)
	}

	labels := registry.Labels{}
	if t.peek() == '{' {
		t.pos++
		if err := t.labels(labels); err != nil {
			return Sample{}, err
		}
	} else if t.pos < len(t.src) && !isSpace(t.src[t.pos]) {
		return Sample{}, errors.Wrapf(ErrInvalidMetricName, "%q", t.src[:t.pos+1])
	}

	if strings.ContainsAny(t.src[t.pos:], "{}") {
		return Sample{}, ErrUnbalancedBraces
	}
	fields := strings.Fields(t.src[t.pos:])
	switch len(fields) {
	case 0:
		return Sample{}, ErrMissingValue
	case 1:
	case 2:
		if _, err := strconv.ParseInt(fields[1], 10, 64); err != nil {
			return Sample{}, errors.Wrapf(ErrTrailingTokens, "%q", fields[1])
		}
	default:
		return Sample{}, errors.Wrapf(ErrTrailingTokens, "%q", strings.Join(fields[1:], " "))
	}

	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Sample{}, errors.Wrapf(ErrInvalidValue, "%q", fields[0])
	}
	return Sample{Name: name, Labels: labels, Value: value}, nil
}

type tokenizer struct {
	src string
	pos int
}

func (t *tokenizer) peek() byte {
	if t.pos >= len(t.src) {
		return 0
	}
	return t.src[t.pos]
}

func (t *tokenizer) skipSpaces() {
	for t.pos < len(t.src) && isSpace(t.src[t.pos]) {
		t.pos++
	}
}

func (t *tokenizer) name() string {
	start := t.pos
	for t.pos < len(t.src) && isNameByte(t.src[t.pos]) {
		t.pos++
	}
	return t.src[start:t.pos]
}

// labels consumes pairs up to and including the closing brace.
func (t *tokenizer) labels(into registry.Labels) error {
	for {
		t.skipSpaces()
		switch t.peek() {
		case 0:
			return ErrUnbalancedBraces
		case '}':
			t.pos++
			return nil
		}

		key := t.name()
		if !model.LabelName(key).IsValid() {
			if t.peek() == 0 {
				return ErrUnbalancedBraces
			}
			return errors.Wrapf(ErrInvalidLabel, "bad label name near %q", t.src[t.pos:])
		}
		t.skipSpaces()
		if t.peek() != '=' {
			return errors.Wrapf(ErrInvalidLabel, "expected '=' after %q", key)
		}
		t.pos++
		t.skipSpaces()

		var (
			value string
			err   error
		)
		if t.peek() == '"' {
			value, err = t.quoted()
		} else {
			value, err = t.unquoted()
		}
		if err != nil {
			return err
		}
		if _, dup := into[key]; dup {
			return errors.Wrapf(ErrDuplicateLabel, "%q", key)
		}
		into[key] = value

		t.skipSpaces()
		switch t.peek() {
		case ',':
			t.pos++
		case '}':
		case 0:
			return ErrUnbalancedBraces
		default:
			return errors.Wrapf(ErrInvalidLabel, "unexpected %q after %s", t.peek(), key)
		}
	}
}

func (t *tokenizer) quoted() (string, error) {
	t.pos++ // opening quote
	var b strings.Builder
	for t.pos < len(t.src) {
		c := t.src[t.pos]
		t.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if t.pos >= len(t.src) {
				return "", ErrUnbalancedBraces
			}
			next := t.src[t.pos]
			t.pos++
			switch next {
			case 'n':
				b.WriteByte('\n')
			case '"', '\\':
				b.WriteByte(next)
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", ErrUnbalancedBraces
}

func (t *tokenizer) unquoted() (string, error) {
	start := t.pos
	for t.pos < len(t.src) && t.src[t.pos] != ',' && t.src[t.pos] != '}' {
		t.pos++
	}
	value := strings.TrimSpace(t.src[start:t.pos])
	if strings.ContainsAny(value, "=\" \t{") {
		return "", errors.Wrapf(ErrAmbiguousLabel, "%q", value)
	}
	return value, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

func isNameByte(c byte) bool {
	return c == '_' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
