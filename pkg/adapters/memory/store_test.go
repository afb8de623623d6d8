package memory_test

import (
	"testing"

	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunProgressStoreContract(t, store)
}

func TestMemoryRecorder_Contract(t *testing.T) {
	ports.RunCompletionRecorderContract(t, memory.NewRecorder())
}
