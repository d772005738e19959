package weights

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

func mustWeights(t *testing.T, skills, career, culture, salary float64) domain.WeightSet {
	t.Helper()
	w, err := domain.NewWeightSet(map[domain.Category]float64{
		domain.CategorySkills:  skills,
		domain.CategoryCareer:  career,
		domain.CategoryCulture: culture,
		domain.CategorySalary:  salary,
	})
	if err != nil {
		t.Fatalf("NewWeightSet: %v", err)
	}
	return w
}

func TestNew_RejectsInvalidInitial(t *testing.T) {
	if _, err := New(domain.WeightSet{}, zap.NewNop()); !errors.Is(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestGet_ReturnsInitial(t *testing.T) {
	svc, err := New(domain.DefaultWeights(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if svc.Get() != domain.DefaultWeights() {
		t.Errorf("Get() = %+v, want defaults", svc.Get())
	}
}

func TestUpdate_StoresAsGiven(t *testing.T) {
	svc, _ := New(domain.DefaultWeights(), zap.NewNop())

	w := mustWeights(t, 2, 2, 1, 0)
	snap, err := svc.Update(w, "recruiter-7")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if snap.UpdatedBy != "recruiter-7" {
		t.Errorf("UpdatedBy = %q", snap.UpdatedBy)
	}
	if got := svc.Get(); got.Of(domain.CategorySkills) != 2 || got.Of(domain.CategorySalary) != 0 {
		t.Errorf("weights were normalized or altered: %+v", got.Map())
	}
}

func TestUpdate_AllZeroKeepsPrevious(t *testing.T) {
	svc, _ := New(domain.DefaultWeights(), zap.NewNop())
	before := svc.Snapshot()

	_, err := svc.Update(domain.WeightSet{}, "")
	if !errors.Is(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
	if svc.Get() != domain.DefaultWeights() {
		t.Errorf("weights changed after rejected update: %+v", svc.Get().Map())
	}
	if svc.Snapshot().UpdatedAt != before.UpdatedAt {
		t.Error("UpdatedAt changed after rejected update")
	}
}

func TestConcurrentUpdatesNeverTear(t *testing.T) {
	svc, _ := New(domain.DefaultWeights(), zap.NewNop())
	a := mustWeights(t, 1, 1, 1, 1)
	b := mustWeights(t, 9, 8, 7, 6)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if (i+j)%2 == 0 {
					_, _ = svc.Update(a, "a")
				} else {
					_, _ = svc.Update(b, "b")
				}
			}
		}(i)
	}

	torn := make(chan domain.WeightSet, 1)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				got := svc.Get()
				if got != a && got != b && got != domain.DefaultWeights() {
					select {
					case torn <- got:
					default:
					}
					return
				}
			}
		}()
	}
	wg.Wait()

	select {
	case got := <-torn:
		t.Fatalf("observed a mixed weight set: %+v", got.Map())
	default:
	}
}
