//go:build integration

package itest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/architeacher/device-catalog/internal/adapters/repos"
	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/internal/services"
	"github.com/architeacher/device-catalog/migrations"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage    = "postgres:18-alpine"
	postgresDatabase = "devices_test"
	postgresUsername = "test"
	postgresPassword = "test"
)

type DevicesRepositoryIntegrationTestSuite struct {
	suite.Suite
	suiteCtx    context.Context
	suiteCancel context.CancelFunc
	container   *postgres.PostgresContainer
	pool        *pgxpool.Pool
	repo        *repos.DevicesRepository
	service     *services.DevicesService
}

func TestDevicesRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(DevicesRepositoryIntegrationTestSuite))
}

func (s *DevicesRepositoryIntegrationTestSuite) SetupSuite() {
	s.suiteCtx, s.suiteCancel = context.WithTimeout(context.Background(), 5*time.Minute)

	container, err := postgres.Run(s.suiteCtx,
		postgresImage,
		postgres.WithDatabase(postgresDatabase),
		postgres.WithUsername(postgresUsername),
		postgres.WithPassword(postgresPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.suiteCtx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := pgxpool.New(s.suiteCtx, connStr)
	s.Require().NoError(err)
	s.pool = pool

	s.Require().NoError(runMigrations(s.suiteCtx, pool))

	log := logger.NewTestLogger()
	s.repo = repos.NewDevicesRepository(s.pool, repos.NewPgxScanner(), repos.NewCriteriaTranslator(&log), log)
	s.service = services.NewDevicesService(s.repo)
}

func (s *DevicesRepositoryIntegrationTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.suiteCtx)
	}
	if s.suiteCancel != nil {
		s.suiteCancel()
	}
}

func (s *DevicesRepositoryIntegrationTestSuite) SetupTest() {
	_, err := s.pool.Exec(s.T().Context(), "TRUNCATE TABLE devices")
	s.Require().NoError(err)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	files, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}

	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.FS.ReadFile(file)
		if err != nil {
			return err
		}

		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", file, err)
		}
	}

	return nil
}

func (s *DevicesRepositoryIntegrationTestSuite) seedDevice(ctx context.Context, device *model.Device) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO devices (id, name, brand, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, device.ID.String(), device.Name, device.Brand, device.State.String(),
		device.CreatedAt, device.UpdatedAt)
	s.Require().NoError(err)
}

func (s *DevicesRepositoryIntegrationTestSuite) seedDevices(ctx context.Context, devices ...*model.Device) {
	for _, device := range devices {
		s.seedDevice(ctx, device)
	}
}

// deviceAt pins the creation time so ordering by it is deterministic.
func deviceAt(name, brand string, state model.State, offset time.Duration) *model.Device {
	device := model.NewDevice(name, brand, state)
	device.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset)
	device.UpdatedAt = device.CreatedAt

	return device
}

func names(page *model.DevicePage) []string {
	result := make([]string, 0, len(page.Devices))
	for _, device := range page.Devices {
		result = append(result, device.Name)
	}

	return result
}

func (s *DevicesRepositoryIntegrationTestSuite) TestCreate_AllStates() {
	ctx := s.T().Context()

	for _, state := range []model.State{model.StateAvailable, model.StateInUse, model.StateInactive} {
		device := model.NewDevice(fmt.Sprintf("Device-%s", state), "Brand", state)
		s.Require().NoError(s.repo.Create(ctx, device))

		retrieved, err := s.repo.FetchByID(ctx, device.ID)
		s.Require().NoError(err)
		s.Require().Equal(device.ID, retrieved.ID)
		s.Require().Equal(device.Name, retrieved.Name)
		s.Require().Equal(state, retrieved.State)
		s.Require().WithinDuration(device.CreatedAt, retrieved.CreatedAt, time.Millisecond)
	}
}

func (s *DevicesRepositoryIntegrationTestSuite) TestCreate_DuplicateID() {
	ctx := s.T().Context()

	device := model.NewDevice("Original", "Brand", model.StateAvailable)
	s.Require().NoError(s.repo.Create(ctx, device))

	duplicate := *device
	duplicate.Name = "Duplicate"

	s.Require().ErrorIs(s.repo.Create(ctx, &duplicate), model.ErrDuplicateDevice)
}

func (s *DevicesRepositoryIntegrationTestSuite) TestFetchByID_NotFound() {
	retrieved, err := s.repo.FetchByID(s.T().Context(), model.NewDeviceID())

	s.Require().ErrorIs(err, model.ErrDeviceNotFound)
	s.Require().Nil(retrieved)
}

func (s *DevicesRepositoryIntegrationTestSuite) TestList() {
	ctx := s.T().Context()

	s.seedDevices(ctx,
		deviceAt("Alpha", "Apple", model.StateAvailable, 1*time.Minute),
		deviceAt("Beta", "Apple", model.StateInUse, 2*time.Minute),
		deviceAt("Gamma", "Apple", model.StateAvailable, 3*time.Minute),
		deviceAt("Delta", "Samsung", model.StateInactive, 4*time.Minute),
	)

	cases := []struct {
		name          string
		filter        model.DeviceFilter
		page          model.PageRequest
		expectedNames []string
		expectedTotal uint64
		expectedPages uint
	}{
		{
			name:          "no criteria returns newest first",
			filter:        model.DeviceFilter{},
			page:          model.DefaultPageRequest(),
			expectedNames: []string{"Delta", "Gamma", "Beta", "Alpha"},
			expectedTotal: 4,
			expectedPages: 1,
		},
		{
			name:          "brand filter sorted by name",
			filter:        model.DeviceFilter{Brand: model.Some("Apple")},
			page:          model.PageRequest{Size: 20, Sort: []model.SortField{model.ParseSortField("name")}},
			expectedNames: []string{"Alpha", "Beta", "Gamma"},
			expectedTotal: 3,
			expectedPages: 1,
		},
		{
			name:          "brand and state are combined",
			filter:        model.DeviceFilter{Brand: model.Some("Apple"), State: model.Some(model.StateAvailable)},
			page:          model.PageRequest{Size: 20, Sort: []model.SortField{model.ParseSortField("name")}},
			expectedNames: []string{"Alpha", "Gamma"},
			expectedTotal: 2,
			expectedPages: 1,
		},
		{
			name:          "blank brand is ignored",
			filter:        model.DeviceFilter{Brand: model.Some("  ")},
			page:          model.PageRequest{Size: 20, Sort: []model.SortField{model.ParseSortField("name")}},
			expectedNames: []string{"Alpha", "Beta", "Delta", "Gamma"},
			expectedTotal: 4,
			expectedPages: 1,
		},
		{
			name:          "second page sorted descending",
			filter:        model.DeviceFilter{},
			page:          model.PageRequest{Page: 1, Size: 2, Sort: []model.SortField{model.ParseSortField("-name")}},
			expectedNames: []string{"Beta", "Alpha"},
			expectedTotal: 4,
			expectedPages: 2,
		},
		{
			name:          "page past the end keeps the totals",
			filter:        model.DeviceFilter{Brand: model.Some("Apple")},
			page:          model.PageRequest{Page: 5, Size: 2},
			expectedNames: []string{},
			expectedTotal: 3,
			expectedPages: 2,
		},
		{
			name:          "unknown brand matches nothing",
			filter:        model.DeviceFilter{Brand: model.Some("Nokia")},
			page:          model.DefaultPageRequest(),
			expectedNames: []string{},
			expectedTotal: 0,
			expectedPages: 0,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			page, err := s.repo.List(ctx, model.FromDeviceFilter(tc.filter, tc.page))

			s.Require().NoError(err)
			s.Require().Equal(tc.expectedNames, names(page))
			s.Require().Equal(tc.expectedTotal, page.TotalElements)
			s.Require().Equal(tc.expectedPages, page.TotalPages)
			s.Require().Equal(tc.page.Page, page.Number)
		})
	}
}

func (s *DevicesRepositoryIntegrationTestSuite) TestUpdateAndDelete_NotFound() {
	ctx := s.T().Context()

	s.Require().ErrorIs(s.repo.Update(ctx, model.NewDevice("Ghost", "Brand", model.StateAvailable)), model.ErrDeviceNotFound)
	s.Require().ErrorIs(s.repo.Delete(ctx, model.NewDeviceID()), model.ErrDeviceNotFound)
}

func (s *DevicesRepositoryIntegrationTestSuite) TestRunInTx_RollsBackOnError() {
	ctx := s.T().Context()
	device := model.NewDevice("Rolled back", "Brand", model.StateAvailable)
	failure := errors.New("abort")

	err := s.repo.RunInTx(ctx, func(txCtx context.Context) error {
		s.Require().NoError(s.repo.Create(txCtx, device))

		return failure
	})

	s.Require().ErrorIs(err, failure)

	_, err = s.repo.FetchByID(ctx, device.ID)
	s.Require().ErrorIs(err, model.ErrDeviceNotFound)
}

func (s *DevicesRepositoryIntegrationTestSuite) TestServiceGuardsDevicesInUse() {
	ctx := s.T().Context()

	device, err := s.service.CreateDevice(ctx, "Pixel", "Google", model.StateInUse)
	s.Require().NoError(err)

	_, err = s.service.PatchDevice(ctx, device.ID, model.DeviceUpdate{Name: model.Some("Renamed")})
	s.Require().ErrorIs(err, model.ErrStateViolation)

	s.Require().ErrorIs(s.service.DeleteDevice(ctx, device.ID), model.ErrStateViolation)

	released, err := s.service.PatchDevice(ctx, device.ID, model.DeviceUpdate{State: model.Some(model.StateAvailable)})
	s.Require().NoError(err)
	s.Require().Equal(model.StateAvailable, released.State)
	s.Require().Equal("Pixel", released.Name)
	s.Require().WithinDuration(device.CreatedAt, released.CreatedAt, time.Millisecond)

	s.Require().NoError(s.service.DeleteDevice(ctx, device.ID))

	_, err = s.service.GetDevice(ctx, device.ID)
	s.Require().ErrorIs(err, model.ErrDeviceNotFound)
}

// Concurrent renames of a device that another caller flips to IN_USE must
// either land before the flip or be rejected, never after it.
func (s *DevicesRepositoryIntegrationTestSuite) TestServiceSerializesConcurrentChanges() {
	ctx := s.T().Context()

	device, err := s.service.CreateDevice(ctx, "Shared", "Brand", model.StateAvailable)
	s.Require().NoError(err)

	const workers = 8

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  []error
		claimErr error
	)

	wg.Add(workers + 1)

	go func() {
		defer wg.Done()

		_, claimErr = s.service.PatchDevice(ctx, device.ID, model.DeviceUpdate{State: model.Some(model.StateInUse)})
	}()

	for index := range workers {
		go func() {
			defer wg.Done()

			_, err := s.service.PatchDevice(ctx, device.ID, model.DeviceUpdate{Name: model.Some(fmt.Sprintf("Rename %d", index))})

			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}()
	}

	wg.Wait()

	s.Require().NoError(claimErr)

	for _, err := range results {
		if err != nil {
			s.Require().ErrorIs(err, model.ErrStateViolation)
		}
	}

	final, err := s.service.GetDevice(ctx, device.ID)
	s.Require().NoError(err)
	s.Require().Equal(model.StateInUse, final.State)
	s.Require().True(final.Name == "Shared" || strings.HasPrefix(final.Name, "Rename "))
}
