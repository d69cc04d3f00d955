package query

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Cast casts v to s. v must be empty or a single item, which is atomized
// before conversion.
func (s *SeqType) Cast(info InputInfo, v Value) (Value, error) {
	switch v.Size() {
	case 0:
		if !s.MayBeZero() {
			return nil, ErrCastEmpty.New(info, s)
		}
		return Empty, nil
	case 1:
	default:
		return nil, ErrInvalidCast.New(info, v.Card(), s)
	}

	it, err := Atomize(info, v.ItemAt(0))
	if err != nil {
		return nil, err
	}
	t, ok := s.Type.(AtomType)
	if !ok || t == ItemType {
		return nil, ErrCast.New(info, it.Type(), s.Type, ValueString(it))
	}
	return t.cast(info, it)
}

// CastItem casts an atomic item to t.
func CastItem(info InputInfo, it Item, t AtomType) (Item, error) {
	return t.cast(info, it)
}

func (t AtomType) cast(info InputInfo, it Item) (Item, error) {
	if it.Type().Eq(t) {
		return it, nil
	}
	fail := func(reason string) error {
		return ErrCast.New(info, it.Type(), t, reason)
	}

	switch t {
	case ItemType, AnyAtomicType:
		return it, nil
	case StringType:
		return Str(ItemString(it)), nil
	case UntypedAtomicType:
		return Untyped(ItemString(it)), nil
	case AnyURIType:
		switch it.(type) {
		case Str, Untyped:
			return URI(strings.TrimSpace(ItemString(it))), nil
		}
	case QNameType:
		switch it.(type) {
		case Str, Untyped:
			return parseQName(strings.TrimSpace(ItemString(it)), fail)
		}
	case BooleanType:
		return castBoolean(it, fail)
	case NumericType:
		if it.Type().IsNumber() {
			return it, nil
		}
		return DoubleType.cast(info, it)
	case DoubleType, FloatType:
		f, err := castFloat(it, fail)
		if err != nil {
			return nil, err
		}
		if t == FloatType {
			f32, err := cast.ToFloat32E(f)
			if err != nil {
				return nil, fail(err.Error())
			}
			return Flt(f32), nil
		}
		return Dbl(f), nil
	case DecimalType:
		d, err := castDecimal(it, fail)
		if err != nil {
			return nil, err
		}
		return Dec{d}, nil
	case IntegerType:
		return castInteger(it, fail)
	}
	return nil, fail(ValueString(it))
}

func castBoolean(it Item, fail func(string) error) (Item, error) {
	switch v := it.(type) {
	case Str, Untyped:
		switch strings.TrimSpace(ItemString(it)) {
		case "true", "1":
			return True, nil
		case "false", "0":
			return False, nil
		}
	case Int:
		b, err := cast.ToBoolE(int(v))
		if err != nil {
			return nil, fail(err.Error())
		}
		return Bln(b), nil
	case Dbl, Flt:
		f, _ := ToFloat64(InputInfo{}, v)
		return Bln(f != 0 && !math.IsNaN(f)), nil
	case Dec:
		return Bln(!v.IsZero()), nil
	}
	return nil, fail(ValueString(it))
}

func castFloat(it Item, fail func(string) error) (float64, error) {
	switch v := it.(type) {
	case Str, Untyped:
		s := strings.TrimSpace(ItemString(it))
		switch s {
		case "INF", "+INF":
			return math.Inf(1), nil
		case "-INF":
			return math.Inf(-1), nil
		case "NaN":
			return math.NaN(), nil
		}
		if strings.ContainsAny(strings.ToLower(s), "inafxp_") {
			return 0, fail(strconv.Quote(s))
		}
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return 0, fail(strconv.Quote(s))
		}
		return f, nil
	case Bln:
		if v {
			return 1, nil
		}
		return 0, nil
	case Int, Dbl, Flt, Dec:
		return ToFloat64(InputInfo{}, v)
	}
	return 0, fail(ValueString(it))
}

func castDecimal(it Item, fail func(string) error) (decimal.Decimal, error) {
	switch v := it.(type) {
	case Str, Untyped:
		s := strings.TrimSpace(ItemString(it))
		if s == "" || strings.ContainsAny(s, "eE") {
			return decimal.Decimal{}, fail(strconv.Quote(s))
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, fail(strconv.Quote(s))
		}
		return d, nil
	case Bln:
		if v {
			return decimal.New(1, 0), nil
		}
		return decimal.Zero, nil
	case Int:
		return decimal.New(int64(v), 0), nil
	case Dbl, Flt:
		f, _ := ToFloat64(InputInfo{}, v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, fail(ValueString(it))
		}
		return decimal.NewFromFloat(f), nil
	}
	return decimal.Decimal{}, fail(ValueString(it))
}

func castInteger(it Item, fail func(string) error) (Item, error) {
	switch v := it.(type) {
	case Str, Untyped:
		s := strings.TrimPrefix(strings.TrimSpace(ItemString(it)), "+")
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fail(strconv.Quote(s))
		}
		return Int(i), nil
	case Bln:
		if v {
			return Int(1), nil
		}
		return Int(0), nil
	case Dec:
		return Int(v.IntPart()), nil
	case Dbl, Flt:
		f, _ := ToFloat64(InputInfo{}, v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fail(ValueString(it))
		}
		i, err := cast.ToInt64E(f)
		if err != nil {
			return nil, fail(err.Error())
		}
		return Int(i), nil
	}
	return nil, fail(ValueString(it))
}

func parseQName(s string, fail func(string) error) (Item, error) {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return nil, fail(strconv.Quote(s))
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		if i == 0 || i == len(s)-1 {
			return nil, fail(strconv.Quote(s))
		}
		return QName{Prefix: s[:i], Local: s[i+1:]}, nil
	}
	return QName{Local: s}, nil
}

// Promote applies the function conversion rules to v: items are atomized
// when an atomic type is expected, untyped values are cast, numbers are
// promoted to float or double, URIs to strings and function items are
// coerced to the expected signature.
func (s *SeqType) Promote(info InputInfo, v Value) (Value, error) {
	n := v.Size()
	if s.Instance(v) {
		return v, nil
	}

	at, atomic := s.Type.(AtomType)
	atomic = atomic && at != ItemType
	items := make([]Item, 0, n)
	for i := int64(0); i < n; i++ {
		it := v.ItemAt(i)
		if atomic {
			var err error
			if it, err = Atomize(info, it); err != nil {
				return nil, err
			}
			p, err := promoteAtom(info, it, at)
			if err != nil {
				return nil, err
			}
			items = append(items, p)
			continue
		}
		if ft, ok := s.Type.(*FuncType); ok {
			if f, ok := it.(FItem); ok {
				c, err := Coerce(info, f, ft)
				if err != nil {
					return nil, err
				}
				items = append(items, c)
				continue
			}
		}
		if !InstanceOf(it, s.Type) {
			return nil, ErrTypePromotion.New(info, it.Type(), s)
		}
		items = append(items, it)
	}

	if !s.Occ.Check(int64(len(items))) {
		return nil, ErrInvalidCast.New(info, v.Card(), s)
	}
	return NewItemSeq(items), nil
}

func promoteAtom(info InputInfo, it Item, t AtomType) (Item, error) {
	src := it.Type()
	switch {
	case src.InstanceOf(t):
		return it, nil
	case src.IsUntyped():
		if t == QNameType {
			return nil, ErrTypePromotion.New(info, src, t)
		}
		return t.cast(info, it)
	case t == DoubleType && (src.InstanceOf(DecimalType) || src.Eq(FloatType)),
		t == FloatType && src.InstanceOf(DecimalType),
		t == StringType && src.Eq(AnyURIType):
		return t.cast(info, it)
	}
	return nil, ErrTypePromotion.New(info, src, t)
}
