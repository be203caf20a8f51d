package registry

import (
	"bytes"

	"github.com/cockroachdb/errors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ContentType is the media type of Serialize's output.
var ContentType = string(expfmt.FmtText)

// Serialize encodes gathered families, in the given order, as text
// exposition. It performs no I/O and fails only on a structurally invalid
// family.
func Serialize(families []*dto.MetricFamily) ([]byte, error) {
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, errors.Wrapf(err, "encoding family %s", mf.GetName())
		}
	}
	return buf.Bytes(), nil
}
