package query

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Value is a materialized sequence of items.
type Value interface {
	// String returns the debug representation of the value.
	String() string
	// Size returns the number of items.
	Size() int64
	// ItemAt returns the item at the given 0-based position.
	ItemAt(i int64) Item
	// Card returns the exact cardinality of the value.
	Card() *Cardinality
}

// Item is a single item. Every item is also a sequence of one item.
type Item interface {
	Value
	// Type returns the dynamic type of the item.
	Type() Type
}

// InstanceOf reports whether the dynamic type of it is an instance of t.
func InstanceOf(it Item, t Type) bool {
	return it.Type().InstanceOf(t)
}

var (
	atomCards [AnyURIType + 1]*Cardinality
	nodeCards [TextType + 1]*Cardinality
)

func init() {
	for t := range atomCards {
		atomCards[t] = &Cardinality{typ: AtomType(t), min: 1, max: 1}
	}
	for t := range nodeCards {
		nodeCards[t] = &Cardinality{typ: NodeType(t), min: 1, max: 1}
	}
}

// Int is an xs:integer item.
type Int int64

// Dbl is an xs:double item.
type Dbl float64

// Flt is an xs:float item.
type Flt float32

// Dec is an xs:decimal item.
type Dec struct {
	decimal.Decimal
}

// NewDec wraps d as an item.
func NewDec(d decimal.Decimal) Dec { return Dec{d} }

// Str is an xs:string item.
type Str string

// Bln is an xs:boolean item.
type Bln bool

// Untyped is an xs:untypedAtomic item.
type Untyped string

// URI is an xs:anyURI item.
type URI string

// QName is an xs:QName item.
type QName struct {
	URI    string
	Prefix string
	Local  string
}

// NewQName creates a QName in the given namespace.
func NewQName(uri, local string) QName {
	return QName{URI: uri, Local: local}
}

// Boolean items.
const (
	True  = Bln(true)
	False = Bln(false)
)

func (Int) Type() Type     { return IntegerType }
func (Dbl) Type() Type     { return DoubleType }
func (Flt) Type() Type     { return FloatType }
func (Dec) Type() Type     { return DecimalType }
func (Str) Type() Type     { return StringType }
func (Bln) Type() Type     { return BooleanType }
func (Untyped) Type() Type { return UntypedAtomicType }
func (URI) Type() Type     { return AnyURIType }
func (QName) Type() Type   { return QNameType }

func (Int) Size() int64     { return 1 }
func (Dbl) Size() int64     { return 1 }
func (Flt) Size() int64     { return 1 }
func (Dec) Size() int64     { return 1 }
func (Str) Size() int64     { return 1 }
func (Bln) Size() int64     { return 1 }
func (Untyped) Size() int64 { return 1 }
func (URI) Size() int64     { return 1 }
func (QName) Size() int64   { return 1 }

func (i Int) ItemAt(int64) Item     { return i }
func (d Dbl) ItemAt(int64) Item     { return d }
func (f Flt) ItemAt(int64) Item     { return f }
func (d Dec) ItemAt(int64) Item     { return d }
func (s Str) ItemAt(int64) Item     { return s }
func (b Bln) ItemAt(int64) Item     { return b }
func (u Untyped) ItemAt(int64) Item { return u }
func (u URI) ItemAt(int64) Item     { return u }
func (q QName) ItemAt(int64) Item   { return q }

func (Int) Card() *Cardinality     { return atomCards[IntegerType] }
func (Dbl) Card() *Cardinality     { return atomCards[DoubleType] }
func (Flt) Card() *Cardinality     { return atomCards[FloatType] }
func (Dec) Card() *Cardinality     { return atomCards[DecimalType] }
func (Str) Card() *Cardinality     { return atomCards[StringType] }
func (Bln) Card() *Cardinality     { return atomCards[BooleanType] }
func (Untyped) Card() *Cardinality { return atomCards[UntypedAtomicType] }
func (URI) Card() *Cardinality     { return atomCards[AnyURIType] }
func (QName) Card() *Cardinality   { return atomCards[QNameType] }

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (d Dbl) String() string { return formatFloat(float64(d), 64) }
func (f Flt) String() string { return formatFloat(float64(f), 32) }
func (d Dec) String() string { return d.Decimal.String() }
func (s Str) String() string { return string(s) }
func (b Bln) String() string { return strconv.FormatBool(bool(b)) }
func (u Untyped) String() string {
	return string(u)
}
func (u URI) String() string { return string(u) }

func (q QName) String() string {
	if q.Prefix != "" {
		return q.Prefix + ":" + q.Local
	}
	if q.URI != "" {
		return "Q{" + q.URI + "}" + q.Local
	}
	return q.Local
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	if a := math.Abs(f); a == 0 || a >= 1e-6 && a < 1e6 {
		return strconv.FormatFloat(f, 'f', -1, bits)
	}
	s := strconv.FormatFloat(f, 'E', -1, bits)
	mant, exp := s, ""
	if i := strings.IndexByte(s, 'E'); i >= 0 {
		mant, exp = s[:i], s[i+1:]
	}
	if !strings.ContainsRune(mant, '.') {
		mant += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-0")
	if neg {
		exp = "-" + exp
	}
	return mant + "E" + exp
}

// ItemString returns the string value of an item.
func ItemString(it Item) string {
	if n, ok := it.(*Node); ok {
		return n.StringValue()
	}
	return it.String()
}

// Atomize returns the typed value of it.
func Atomize(info InputInfo, it Item) (Item, error) {
	switch it := it.(type) {
	case *Node:
		return Untyped(it.StringValue()), nil
	case FItem:
		return nil, ErrAtomize.New(info, it.Type())
	}
	return it, nil
}

// ToFloat64 converts a numeric or untyped item to a float64.
func ToFloat64(info InputInfo, it Item) (float64, error) {
	switch it := it.(type) {
	case Int:
		return float64(it), nil
	case Dbl:
		return float64(it), nil
	case Flt:
		return float64(it), nil
	case Dec:
		f, _ := it.Float64()
		return f, nil
	case Untyped, *Node:
		v, err := DoubleType.cast(info, Str(ItemString(it)))
		if err != nil {
			return 0, err
		}
		return float64(v.(Dbl)), nil
	}
	return 0, ErrCast.New(info, it.Type(), DoubleType, it)
}

// ToDecimal converts an integer or decimal item to a decimal.
func ToDecimal(it Item) (decimal.Decimal, bool) {
	switch it := it.(type) {
	case Int:
		return decimal.New(int64(it), 0), true
	case Dec:
		return it.Decimal, true
	}
	return decimal.Decimal{}, false
}
