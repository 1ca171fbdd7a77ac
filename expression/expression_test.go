package expression

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/DGField/value"
)

func TestCompileNames(t *testing.T) {
	p, err := Compile("a + b*sin(x) - a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "sin", "x"}, p.Names)
	assert.True(t, p.References("x"))
	assert.False(t, p.References("y"))
}

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{"a +", "(1, 2", `"text"`, "a in b", "map(a, # + 1)", "a?.b"} {
		_, err := Compile(src)
		var se *SyntaxError
		assert.Truef(t, errors.As(err, &se), "expected syntax error for %q, got %v", src, err)
	}
	assert.Panics(t, func() { MustCompile("1 +") })
}

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"a+b", 5},
		{"a*b - 1", 5},
		{"b/a", 1.5},
		{"a**3", 8},
		{"a^3", 8},
		{"-a + +b", 1},
		{"7 % 4", 3},
		{"a < b", 1},
		{"a >= b", 0},
		{"a < b && b < 4", 1},
		{"not (a == 2)", 0},
		{"a > 1 ? 10 : 20", 10},
		{"sqrt(16) + abs(-2)", 6},
		{"max(a, b) - min(a, b)", 1},
		{"cos(pi)", -1},
		{"arctan2(1, 1)*4", math.Pi},
		{"[1, 2, 7][2]", 7},
		{"[1, 2, 7][-2]", 2},
		{"dot([1, 2, 3], [4, 5, 6])", 32},
		{"norm([3, 4])", 5},
		{"round(2.5)", 2},
	}
	env := Env{"a": 2, "b": 3.0}
	for _, tt := range tests {
		p, err := Compile(tt.src)
		require.NoError(t, err, tt.src)
		v, err := p.Eval(env)
		require.NoError(t, err, tt.src)
		assert.InDeltaf(t, tt.want, v.Real(), 1.e-12, "%s", tt.src)
		assert.Truef(t, v.IsScalar(), "%s should be a scalar", tt.src)
	}
}

func TestEvalComplex(t *testing.T) {
	p := MustCompile("z*conj(z) + 2*j")
	v, err := p.Eval(Env{"z": complex(3, 4)})
	require.NoError(t, err)
	assert.True(t, v.Complex)
	assert.Equal(t, complex(25, 2), v.Data[0])

	v, err = MustCompile("abs(z)").Eval(Env{"z": complex(3, 4)})
	require.NoError(t, err)
	assert.False(t, v.Complex)
	assert.Equal(t, 5., v.Real())

	v, err = MustCompile("real(z) + imag(z)").Eval(Env{"z": complex(3, 4)})
	require.NoError(t, err)
	assert.Equal(t, 7., v.Real())
}

func TestEvalVectors(t *testing.T) {
	v, err := MustCompile("s*v").Eval(Env{"s": 2, "v": []float64{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, v.Shape)
	assert.Equal(t, []float64{2, 4, 6}, v.Float64s())

	v, err = MustCompile("cross([1, 0, 0], [0, 1, 0])").Eval(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1}, v.Float64s())

	_, err = MustCompile("[1, 2] + [1, 2, 3]").Eval(nil)
	assert.True(t, errors.Is(err, value.ErrShape))
}

func TestEvalBatched(t *testing.T) {
	env := Env{
		"x": value.Column([]float64{0, 1, 2}),
		"y": value.Column([]float64{1, 1, 1}),
	}
	v, err := MustCompile("x*x + y").Eval(env)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Rows)
	assert.Equal(t, []float64{1, 2, 5}, v.Float64s())

	v, err = MustCompile("x > 0.5 ? x : -1").Eval(env)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1, 2}, v.Float64s())

	v, err = MustCompile("[x, y]").Eval(env)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, v.Shape)
	assert.Equal(t, []float64{0, 1, 1, 1, 2, 1}, v.Float64s())
}

func TestUnresolvedName(t *testing.T) {
	_, err := MustCompile("a + missing").Eval(Env{"a": 1})
	var ue *UnresolvedNameError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "missing", ue.Name)
	assert.Contains(t, err.Error(), "missing")

	_, err = MustCompile("nofunc(1)").Eval(nil)
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "nofunc", ue.Name)
}

func TestCallableResult(t *testing.T) {
	calls := 0
	f := Func(func(args ...value.Value) (value.Value, error) {
		calls++
		return value.Scalar(float64(len(args)) + 42), nil
	})
	v, err := MustCompile("f").Eval(Env{"f": f})
	require.NoError(t, err)
	assert.Equal(t, 42., v.Real())
	v, err = MustCompile("f(1, 2)").Eval(Env{"f": f})
	require.NoError(t, err)
	assert.Equal(t, 44., v.Real())
	assert.Equal(t, 2, calls)

	_, err = MustCompile("f + 1").Eval(Env{"f": f})
	assert.Error(t, err)
	_, err = MustCompile("a(1)").Eval(Env{"a": 1})
	assert.Error(t, err)
}

func TestEnvOverridesBuiltins(t *testing.T) {
	v, err := MustCompile("pi + abs(1)").Eval(Env{
		"pi": 3,
		"abs": Func(func(args ...value.Value) (value.Value, error) {
			return value.Scalar(10), nil
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, 13., v.Real())
	assert.True(t, IsBuiltin("sin"))
	assert.Contains(t, Builtins(), "j")
}

func TestEnvDefinesParserBuiltins(t *testing.T) {
	p, err := Compile("max(a, 2) + len(a)")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"max", "len", "a"}, p.Names)

	count := Func(func(args ...value.Value) (value.Value, error) {
		return value.Scalar(float64(len(args)) * 100), nil
	})
	v, err := p.Eval(Env{"a": 1, "len": count})
	require.NoError(t, err)
	assert.Equal(t, 102., v.Real())

	top := Func(func(args ...value.Value) (value.Value, error) {
		return value.Scalar(-1), nil
	})
	v, err = p.Eval(Env{"a": 1, "len": count, "max": top})
	require.NoError(t, err)
	assert.Equal(t, 99., v.Real())

	_, err = p.Eval(Env{"a": 1})
	var ue *UnresolvedNameError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "len", ue.Name)
}

func TestSuffix(t *testing.T) {
	out, err := Suffix("u*v + sin(u) + w", "_1", []string{"u", "v"})
	require.NoError(t, err)
	p := MustCompile(out)
	assert.ElementsMatch(t, []string{"u_1", "v_1", "sin", "w"}, p.Names)

	_, err = Suffix("u +", "_1", []string{"u"})
	assert.Error(t, err)
}
