package genvalue

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"time"

	"github.com/blackcoderx/conform/pkg/jsonvalue"
)

// formatGenerator is a registered built-in string-format strategy (spec
// section 4.C: "date", "date-time", "uuid", "byte", "binary", "email",
// "ipv4/6"). Every format here is generated with the standard library; no
// library in the retrieval pack (including the teacher's own go.mod)
// carries a direct dependency on a UUID or format-faker library, so
// introducing one here for a handful of one-off generators would be the
// outlier, not the norm (see DESIGN.md).
type formatGenerator func(r *rand.Rand) jsonvalue.Value

var formatRegistry = map[string]formatGenerator{
	"date":      genDate,
	"date-time": genDateTime,
	"uuid":      genUUID,
	"byte":      genByte,
	"binary":    genBinary,
	"email":     genEmail,
	"ipv4":      genIPv4,
	"ipv6":      genIPv6,
}

type builtinFormat struct{ gen formatGenerator }

func (f builtinFormat) Generate(r *rand.Rand) jsonvalue.Value { return f.gen(r) }

// FormatStrategy looks up a built-in format strategy by name.
func FormatStrategy(name string) (interface{ Generate(r *rand.Rand) jsonvalue.Value }, bool) {
	gen, ok := formatRegistry[name]
	if !ok {
		return nil, false
	}
	return builtinFormat{gen}, true
}

func genDate(r *rand.Rand) jsonvalue.Value {
	t := randomTime(r)
	return jsonvalue.String(t.Format("2006-01-02"))
}

func genDateTime(r *rand.Rand) jsonvalue.Value {
	t := randomTime(r)
	return jsonvalue.String(t.Format(time.RFC3339))
}

func randomTime(r *rand.Rand) time.Time {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	offset := time.Duration(r.Int63n(int64(20 * 365 * 24 * time.Hour)))
	return base.Add(offset)
}

// genUUID generates a version-4 UUID from 16 bytes drawn from the
// generator's own *rand.Rand (math/rand, so the value is reproducible from
// the seed), matching RFC 4122 without pulling in google/uuid.
func genUUID(r *rand.Rand) jsonvalue.Value {
	var b [16]byte
	for i := range b {
		b[i] = byte(r.Intn(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	s := fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
	return jsonvalue.String(s)
}

func genByte(r *rand.Rand) jsonvalue.Value {
	n := 1 + r.Intn(16)
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(r.Intn(256))
	}
	return jsonvalue.String(base64.StdEncoding.EncodeToString(buf))
}

func genBinary(r *rand.Rand) jsonvalue.Value {
	n := 1 + r.Intn(32)
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(r.Intn(256))
	}
	return jsonvalue.Binary(buf)
}

func genEmail(r *rand.Rand) jsonvalue.Value {
	local := randomString(r, 1+r.Intn(8))
	domain := randomString(r, 1+r.Intn(6))
	tld := []string{"com", "org", "net", "io"}[r.Intn(4)]
	return jsonvalue.String(fmt.Sprintf("%s@%s.%s", local, domain, tld))
}

func genIPv4(r *rand.Rand) jsonvalue.Value {
	return jsonvalue.String(fmt.Sprintf("%d.%d.%d.%d", r.Intn(256), r.Intn(256), r.Intn(256), r.Intn(256)))
}

func genIPv6(r *rand.Rand) jsonvalue.Value {
	groups := make([]string, 8)
	for i := range groups {
		groups[i] = fmt.Sprintf("%x", r.Intn(0x10000))
	}
	s := groups[0]
	for _, g := range groups[1:] {
		s += ":" + g
	}
	return jsonvalue.String(s)
}
