package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gapgo/internal/npy"
)

type fakeKernel struct {
	name string
	zeta int
}

func (k *fakeKernel) ID() ID { return ID{Module: "models.kernels", Class: "Kernel"} }

func (k *fakeKernel) InitParams() map[string]any {
	return map[string]any{"name": k.name, "zeta": k.zeta}
}

func (k *fakeKernel) Data() map[string]any { return map[string]any{} }

func (k *fakeKernel) SetData(map[string]any) error { return nil }

type fakeModel struct {
	kernel  *fakeKernel
	weights *npy.Array
}

func (m *fakeModel) ID() ID { return ID{Module: "models", Class: "KRR"} }

func (m *fakeModel) InitParams() map[string]any {
	return map[string]any{"kernel": m.kernel}
}

func (m *fakeModel) Data() map[string]any {
	return map[string]any{"weights": m.weights}
}

func (m *fakeModel) SetData(data map[string]any) error {
	w, err := ToArray(data, "weights")
	if err != nil {
		return err
	}
	m.weights = w
	return nil
}

func init() {
	Register(ID{Module: "models.kernels", Class: "Kernel"}, func(init map[string]any) (Entity, error) {
		name, err := ToString(init, "name")
		if err != nil {
			return nil, err
		}
		zeta, err := ToInt(init, "zeta")
		if err != nil {
			return nil, err
		}
		return &fakeKernel{name: name, zeta: zeta}, nil
	})
	Register(ID{Module: "models", Class: "KRR"}, func(init map[string]any) (Entity, error) {
		k, ok := init["kernel"].(*fakeKernel)
		if !ok {
			return nil, assert.AnError
		}
		return &fakeModel{kernel: k}, nil
	})
}

func newFakeModel(t *testing.T, n int) *fakeModel {
	t.Helper()
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i) * 0.5
	}
	w, err := Array(data, n)
	require.NoError(t, err)
	return &fakeModel{kernel: &fakeKernel{name: "Cosine", zeta: 2}, weights: w}
}

func TestRoundTripInline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")

	require.NoError(t, Save(path, newFakeModel(t, 8)))

	// Small array stays inline: no sidecars on disk.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e, err := Load(path)
	require.NoError(t, err)
	m, ok := e.(*fakeModel)
	require.True(t, ok)

	assert.Equal(t, "Cosine", m.kernel.name)
	assert.Equal(t, 2, m.kernel.zeta)
	assert.Equal(t, []int{8}, m.weights.Shape())
	assert.InDelta(t, 3.5, m.weights.Float64()[7], 1e-12)
}

func TestRoundTripSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")

	saver := NewSaver(WithArrayThreshold(16))
	require.NoError(t, saver.Save(path, newFakeModel(t, 100)))

	_, err := os.Stat(filepath.Join(dir, "model-krr-weights.npy"))
	require.NoError(t, err, "large array should be externalized")

	e, err := saver.Load(path)
	require.NoError(t, err)
	m := e.(*fakeModel)
	defer m.weights.Close()

	assert.True(t, m.weights.Mapped())
	assert.Equal(t, []int{100}, m.weights.Shape())
	assert.InDelta(t, 49.5, m.weights.Float64()[99], 1e-12)
}

func TestThresholdBoundary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")

	// 100 float64 = 800 bytes; threshold of exactly 800 keeps it inline.
	saver := NewSaver(WithArrayThreshold(800))
	require.NoError(t, saver.Save(path, newFakeModel(t, 100)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveUnsupportedFormat(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "model.yaml"), newFakeModel(t, 4))
	var ufe *UnsupportedFormatError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, ".yaml", ufe.Ext)
}

func TestLoadMalformedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"0.1","class_name":"KRR"}`), 0o644))

	_, err := Load(path)
	var mre *MalformedRecordError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, []string{"class_name", "version"}, mre.Keys)
}

func TestLoadUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	rec := `{"version":"9.9","class_name":"KRR","module_name":"models","init_params":{},"data":{}}`
	require.NoError(t, os.WriteFile(path, []byte(rec), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestLoadNotRegistered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	rec := `{"version":"0.1","class_name":"Nope","module_name":"models","init_params":{},"data":{}}`
	require.NoError(t, os.WriteFile(path, []byte(rec), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestIsValidRecordMap(t *testing.T) {
	valid := map[string]any{
		"version": "0.1", "class_name": "a", "module_name": "b",
		"init_params": map[string]any{}, "data": map[string]any{},
	}
	assert.True(t, IsValidRecordMap(valid))

	missing := map[string]any{"version": "0.1"}
	assert.False(t, IsValidRecordMap(missing))

	extra := map[string]any{
		"version": "0.1", "class_name": "a", "module_name": "b",
		"init_params": map[string]any{}, "data": map[string]any{}, "extra": 1,
	}
	assert.False(t, IsValidRecordMap(extra))
}

func TestPackUnpack(t *testing.T) {
	srcDir := t.TempDir()
	path := filepath.Join(srcDir, "model.json")
	saver := NewSaver(WithArrayThreshold(16))
	require.NoError(t, saver.Save(path, newFakeModel(t, 50)))

	archive := filepath.Join(t.TempDir(), "model"+ArchiveExt)
	require.NoError(t, Pack(archive, path))

	dstDir := t.TempDir()
	recPath, err := Unpack(archive, dstDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dstDir, "model.json"), recPath)

	e, err := saver.Load(recPath)
	require.NoError(t, err)
	m := e.(*fakeModel)
	defer m.weights.Close()
	assert.InDelta(t, 24.5, m.weights.Float64()[49], 1e-12)
}

func TestConvertHelpers(t *testing.T) {
	m := map[string]any{
		"zeta":     2.0,
		"cutoff":   3.5,
		"name":     "Cosine",
		"soft":     true,
		"species":  []any{1.0, 8.0},
		"weights":  []any{0.1, 0.2},
		"fraction": 2.5,
		"baseline": map[string]any{"1": -1.0, "8": -0.5},
	}

	z, err := ToInt(m, "zeta")
	require.NoError(t, err)
	assert.Equal(t, 2, z)

	_, err = ToInt(m, "fraction")
	assert.Error(t, err)

	c, err := ToFloat(m, "cutoff")
	require.NoError(t, err)
	assert.Equal(t, 3.5, c)

	s, err := ToString(m, "name")
	require.NoError(t, err)
	assert.Equal(t, "Cosine", s)

	b, err := ToBool(m, "soft")
	require.NoError(t, err)
	assert.True(t, b)

	sp, err := ToIntSlice(m, "species")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 8}, sp)

	w, err := ToFloatSlice(m, "weights")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, w)

	bl, err := ToIntFloatMap(m, "baseline")
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{1: -1.0, 8: -0.5}, bl)

	_, err = ToFloat(m, "missing")
	assert.Error(t, err)
}

func TestNestedInlineArrayShape(t *testing.T) {
	a, err := Array([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	nested := arrayToNested(a)
	back, err := nestedToArray(nested)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, back.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, back.Float64())
}
