package cache

import "testing"

func TestCreateUnknownBackend(t *testing.T) {
	if _, err := Create("nonexistent", nil); err == nil {
		t.Fatal("expected an error for an unregistered backend name")
	}
}

func TestRegisterAndCreate(t *testing.T) {
	const name = "test-backend"
	Register(name, func(parameters map[string]string) (Backend, error) {
		return nil, nil
	})

	if _, err := Create(name, map[string]string{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
}
