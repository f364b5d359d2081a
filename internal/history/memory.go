package history

import (
	"slices"
	"sync"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/lurchfeed/internal/log"
)

// memoryRepository keeps runs in a go-cache instance for the life of the
// process. It backs history when persistence is disabled.
type memoryRepository struct {
	mu     sync.Mutex
	cache  *gocache.Cache
	nextID int64
}

var _ Repository = (*memoryRepository)(nil)

// NewMemoryRepository returns a Repository that never touches disk.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

func (r *memoryRepository) Save(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == 0 {
		r.nextID++
		run.ID = r.nextID
	} else if _, found := r.cache.Get(run.GUID); !found {
		return &NotFoundError{GUID: run.GUID}
	}

	stored := *run
	r.cache.Set(run.GUID, &stored, gocache.NoExpiration)
	log.Debug(log.CatHistory, "run saved in memory", "guid", run.GUID, "state", run.State)
	return nil
}

func (r *memoryRepository) FindByGUID(guid string) (*Run, error) {
	value, found := r.cache.Get(guid)
	if !found {
		return nil, &NotFoundError{GUID: guid}
	}
	run, ok := value.(*Run)
	if !ok {
		log.Error(log.CatHistory, "wrong type in history cache", "guid", guid)
		return nil, &NotFoundError{GUID: guid}
	}
	out := *run
	return &out, nil
}

func (r *memoryRepository) List(filter ListFilter) ([]*Run, error) {
	var runs []*Run
	for _, item := range r.cache.Items() {
		run, ok := item.Object.(*Run)
		if !ok {
			continue
		}
		if filter.State != "" && run.State != filter.State {
			continue
		}
		out := *run
		runs = append(runs, &out)
	}

	slices.SortFunc(runs, func(a, b *Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

func (r *memoryRepository) Close() error {
	r.cache.Flush()
	return nil
}
