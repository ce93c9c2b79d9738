package quant

import "testing"

func TestGlobalRegistry_BuiltinsRegistered(t *testing.T) {
	if !IsSupported(ScalarQuantization) {
		t.Error("expected scalar quantization to be registered by default")
	}
	if !IsSupported(ProductQuantization) {
		t.Error("expected product quantization to be registered by default")
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ScalarQuantization, NewScalarQuantizerFactory()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(ScalarQuantization, NewScalarQuantizerFactory()); err == nil {
		t.Error("expected error registering the same type twice")
	}
}

func TestRegistry_Create(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ScalarQuantization, NewScalarQuantizerFactory()); err != nil {
		t.Fatalf("register: %v", err)
	}
	q, err := r.Create(DefaultScalarConfig())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if q.IsTrained() {
		t.Error("freshly created quantizer should not be trained")
	}
}

func TestRegistry_CreateUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(DefaultScalarConfig())
	if err == nil {
		t.Error("expected error creating from an empty registry")
	}
}
