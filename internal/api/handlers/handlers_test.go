package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-api/internal/coordinator"
	"ledger-api/internal/domain/engine"
	"ledger-api/internal/domain/ledger"
	"ledger-api/internal/domain/registry"
	"ledger-api/internal/infrastructure/idempotency"
	"ledger-api/internal/infrastructure/messaging"
	"ledger-api/internal/infrastructure/store"
	"ledger-api/internal/pkg/money"
)

// memStore is a tiny in-memory store.Store good enough to drive the
// handlers end to end through a real gin router, without Postgres. Each
// Begin snapshots the current state; writes are only applied back on
// Commit, matching transactional isolation.
type memStore struct {
	users        map[uuid.UUID]*ledger.User
	accounts     map[uuid.UUID]*ledger.Account
	houseByKey   map[string]uuid.UUID
	transactions map[uuid.UUID]*ledger.Transaction
	entries      map[uuid.UUID][]ledger.LedgerEntry
	idempotency  map[string]*ledger.IdempotencyRecord
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[uuid.UUID]*ledger.User),
		accounts:     make(map[uuid.UUID]*ledger.Account),
		houseByKey:   make(map[string]uuid.UUID),
		transactions: make(map[uuid.UUID]*ledger.Transaction),
		entries:      make(map[uuid.UUID][]ledger.LedgerEntry),
		idempotency:  make(map[string]*ledger.IdempotencyRecord),
	}
}

func (s *memStore) Begin(ctx context.Context) (store.Tx, error) {
	tx := &memTx{
		store:       s,
		accounts:    make(map[uuid.UUID]*ledger.Account, len(s.accounts)),
		houseByKey:  make(map[string]uuid.UUID, len(s.houseByKey)),
		idempotency: make(map[string]*ledger.IdempotencyRecord, len(s.idempotency)),
	}
	for k, v := range s.accounts {
		cp := *v
		tx.accounts[k] = &cp
	}
	for k, v := range s.houseByKey {
		tx.houseByKey[k] = v
	}
	for k, v := range s.idempotency {
		cp := *v
		tx.idempotency[k] = &cp
	}
	return tx, nil
}

func (s *memStore) GetUser(ctx context.Context, id uuid.UUID) (*ledger.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ledger.New(ledger.KindNotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) ListUsers(ctx context.Context) ([]ledger.User, error) {
	out := make([]ledger.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *memStore) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	acc, ok := s.accounts[id]
	if !ok {
		return nil, ledger.New(ledger.KindNotFound, "account not found")
	}
	cp := *acc
	return &cp, nil
}

func (s *memStore) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]ledger.Transaction, error) {
	out := make([]ledger.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if filter.UserID != nil && (t.UserID == nil || *t.UserID != *filter.UserID) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *memStore) GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, []ledger.LedgerEntry, error) {
	t, ok := s.transactions[id]
	if !ok {
		return nil, nil, ledger.New(ledger.KindNotFound, "transaction not found")
	}
	return t, s.entries[id], nil
}

func (s *memStore) WalletSummary(ctx context.Context, userID uuid.UUID) ([]store.WalletSummary, error) {
	out := []store.WalletSummary{}
	for _, acc := range s.accounts {
		if acc.UserID != nil && *acc.UserID == userID {
			out = append(out, store.WalletSummary{
				Currency:         acc.Currency,
				Balance:          acc.Balance.String(),
				AvailableBalance: acc.AvailableBalance.String(),
			})
		}
	}
	return out, nil
}

func (s *memStore) AdminSummary(ctx context.Context) (*store.AdminSummary, error) {
	return &store.AdminSummary{
		TotalUsers:        int64(len(s.users)),
		TotalAccounts:     int64(len(s.accounts)),
		TotalTransactions: int64(len(s.transactions)),
	}, nil
}

func (s *memStore) Close() {}

var _ store.Store = (*memStore)(nil)

type memTx struct {
	store       *memStore
	accounts    map[uuid.UUID]*ledger.Account
	houseByKey  map[string]uuid.UUID
	idempotency map[string]*ledger.IdempotencyRecord
	newUsers    []*ledger.User
	newTxns     []*ledger.Transaction
	newEntries  []*ledger.LedgerEntry
}

func (t *memTx) LockAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	acc, ok := t.accounts[id]
	if !ok {
		return nil, ledger.New(ledger.KindNotFound, "account not found")
	}
	cp := *acc
	return &cp, nil
}

func (t *memTx) GetOrCreateAccount(ctx context.Context, userID *uuid.UUID, accType ledger.AccountType, currency ledger.Currency, name string) (*ledger.Account, error) {
	if userID != nil {
		for _, acc := range t.accounts {
			if acc.UserID != nil && *acc.UserID == *userID && acc.Type == accType && acc.Currency == currency {
				cp := *acc
				return &cp, nil
			}
		}
	} else {
		key := fmt.Sprintf("%s:%s", accType, currency)
		if id, ok := t.houseByKey[key]; ok {
			cp := *t.accounts[id]
			return &cp, nil
		}
	}

	acc := &ledger.Account{
		ID: uuid.New(), UserID: userID, Name: name, Type: accType, Currency: currency,
		Balance: money.Zero, AvailableBalance: money.Zero, Status: ledger.AccountActive,
	}
	t.accounts[acc.ID] = acc
	if userID == nil {
		t.houseByKey[fmt.Sprintf("%s:%s", accType, currency)] = acc.ID
	}
	cp := *acc
	return &cp, nil
}

func (t *memTx) UpdateAccount(ctx context.Context, acc *ledger.Account) error {
	cp := *acc
	cp.Version++
	t.accounts[acc.ID] = &cp
	return nil
}

func (t *memTx) CreateUser(ctx context.Context, u *ledger.User) error {
	for _, existing := range t.store.users {
		if existing.Email == u.Email {
			return ledger.New(ledger.KindUniqueViolation, "email already registered")
		}
	}
	cp := *u
	t.newUsers = append(t.newUsers, &cp)
	return nil
}

func (t *memTx) CreateTransaction(ctx context.Context, txn *ledger.Transaction) error {
	cp := *txn
	t.newTxns = append(t.newTxns, &cp)
	return nil
}

func (t *memTx) CreateLedgerEntry(ctx context.Context, e *ledger.LedgerEntry) error {
	cp := *e
	t.newEntries = append(t.newEntries, &cp)
	return nil
}

func (t *memTx) MarkTransactionStatus(ctx context.Context, id uuid.UUID, status ledger.TransactionStatus) error {
	return nil
}

func (t *memTx) LockIdempotencyRecord(ctx context.Context, key string) (*ledger.IdempotencyRecord, error) {
	rec, ok := t.idempotency[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (t *memTx) InsertIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error {
	cp := *rec
	t.idempotency[rec.Key] = &cp
	return nil
}

func (t *memTx) UpdateIdempotencyRecord(ctx context.Context, rec *ledger.IdempotencyRecord) error {
	existing, ok := t.idempotency[rec.Key]
	if !ok {
		cp := *rec
		t.idempotency[rec.Key] = &cp
		return nil
	}
	merged := *existing
	merged.Status = rec.Status
	merged.ExpiresAt = rec.ExpiresAt
	if rec.ResponseCode != nil {
		merged.ResponseCode = rec.ResponseCode
	}
	if rec.ResponseBody != nil {
		merged.ResponseBody = rec.ResponseBody
	}
	t.idempotency[rec.Key] = &merged
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	for k, v := range t.accounts {
		cp := *v
		t.store.accounts[k] = &cp
	}
	for k, v := range t.houseByKey {
		t.store.houseByKey[k] = v
	}
	for k, v := range t.idempotency {
		cp := *v
		t.store.idempotency[k] = &cp
	}
	for _, u := range t.newUsers {
		cp := *u
		t.store.users[u.ID] = &cp
	}
	for _, txn := range t.newTxns {
		cp := *txn
		t.store.transactions[txn.ID] = &cp
	}
	for _, e := range t.newEntries {
		t.store.entries[e.TransactionID] = append(t.store.entries[e.TransactionID], *e)
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error { return nil }

var _ store.Tx = (*memTx)(nil)

// testDeps wires a memStore through the real registry/engine/gate/
// coordinator stack, satisfying HandlerDependencies exactly as the
// components.Container does in production.
type testDeps struct {
	st        *memStore
	coord     *coordinator.Coordinator
	eng       *engine.Engine
	publisher messaging.EventPublisher
}

func newTestDeps() *testDeps {
	st := newMemStore()
	reg := registry.New()
	eng := engine.New(reg)
	gate := idempotency.New(time.Minute, "test", nil)
	coord := coordinator.New(st, gate)
	return &testDeps{st: st, coord: coord, eng: eng, publisher: messaging.NewNoOpEventPublisher()}
}

func (d *testDeps) GetStore() store.Store                      { return d.st }
func (d *testDeps) GetCoordinator() *coordinator.Coordinator    { return d.coord }
func (d *testDeps) GetEngine() *engine.Engine                   { return d.eng }
func (d *testDeps) GetEventPublisher() messaging.EventPublisher { return d.publisher }

var _ HandlerDependencies = (*testDeps)(nil)

func newTestRouter(deps *testDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.POST("/api/users", MakeCreateUserHandler(deps))
	r.GET("/api/users/:id", MakeGetUserHandler(deps))
	r.POST("/api/ledger/deposit", MakeDepositHandler(deps))
	r.POST("/api/ledger/transfer", MakeTransferHandler(deps))
	r.POST("/api/ledger/withdraw", MakeWithdrawHandler(deps))
	r.GET("/api/ledger/balance/:user_id", MakeGetBalanceHandler(deps))
	return r
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, idempotencyKey string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createTestUser(t *testing.T, router *gin.Engine, email, name, idemKey string) uuid.UUID {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/users", createUserRequest{Email: email, FullName: name}, idemKey)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestCreateUserRequiresIdempotencyKey(t *testing.T) {
	deps := newTestDeps()
	router := newTestRouter(deps)

	rec := doJSON(t, router, http.MethodPost, "/api/users", createUserRequest{Email: "ada@example.com", FullName: "Ada Lovelace"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUserRejectsMalformedEmail(t *testing.T) {
	deps := newTestDeps()
	router := newTestRouter(deps)

	rec := doJSON(t, router, http.MethodPost, "/api/users", createUserRequest{Email: "not-an-email", FullName: "Ada Lovelace"}, "key-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUserThenGetUser(t *testing.T) {
	deps := newTestDeps()
	router := newTestRouter(deps)

	id := createTestUser(t, router, "ada@example.com", "Ada Lovelace", "key-1")

	rec := doJSON(t, router, http.MethodGet, "/api/users/"+id.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ada@example.com", resp.Email)
}

func TestDepositRequiresIdempotencyKey(t *testing.T) {
	deps := newTestDeps()
	router := newTestRouter(deps)
	userID := createTestUser(t, router, "dep@example.com", "Grace Hopper", "user-key")

	rec := doJSON(t, router, http.MethodPost, "/api/ledger/deposit", depositRequest{UserID: userID, Amount: "50.00", Currency: "USD"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDepositThenBalanceReflectsAmount(t *testing.T) {
	deps := newTestDeps()
	router := newTestRouter(deps)
	userID := createTestUser(t, router, "dep2@example.com", "Grace Hopper", "user-key")

	rec := doJSON(t, router, http.MethodPost, "/api/ledger/deposit", depositRequest{UserID: userID, Amount: "120.50", Currency: "USD"}, "dep-key-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	var txnResp TransactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txnResp))
	assert.Equal(t, "120.50", txnResp.Amount)
	require.Len(t, txnResp.Entries, 2, "deposit must post a balanced double-entry pair")

	balRec := doJSON(t, router, http.MethodGet, "/api/ledger/balance/"+userID.String(), nil, "")
	require.Equal(t, http.StatusOK, balRec.Code)

	var balResp UserBalanceResponse
	require.NoError(t, json.Unmarshal(balRec.Body.Bytes(), &balResp))
	require.Len(t, balResp.Accounts, 1)
	assert.Equal(t, "120.50", balResp.Accounts[0].Balance)
}

func TestDepositIsIdempotentOnRetry(t *testing.T) {
	deps := newTestDeps()
	router := newTestRouter(deps)
	userID := createTestUser(t, router, "dep3@example.com", "Grace Hopper", "user-key")

	req := depositRequest{UserID: userID, Amount: "30.00", Currency: "USD"}
	first := doJSON(t, router, http.MethodPost, "/api/ledger/deposit", req, "same-key")
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/api/ledger/deposit", req, "same-key")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	balRec := doJSON(t, router, http.MethodGet, "/api/ledger/balance/"+userID.String(), nil, "")
	var balResp UserBalanceResponse
	require.NoError(t, json.Unmarshal(balRec.Body.Bytes(), &balResp))
	require.Len(t, balResp.Accounts, 1)
	assert.Equal(t, "30.00", balResp.Accounts[0].Balance, "replayed deposit must not double-apply")
}

func TestDepositWithSameKeyDifferentBodyConflicts(t *testing.T) {
	deps := newTestDeps()
	router := newTestRouter(deps)
	userID := createTestUser(t, router, "dep4@example.com", "Grace Hopper", "user-key")

	first := doJSON(t, router, http.MethodPost, "/api/ledger/deposit", depositRequest{UserID: userID, Amount: "30.00", Currency: "USD"}, "conflict-key")
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/api/ledger/deposit", depositRequest{UserID: userID, Amount: "99.00", Currency: "USD"}, "conflict-key")
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestTransferMovesFundsBetweenUsers(t *testing.T) {
	deps := newTestDeps()
	router := newTestRouter(deps)
	alice := createTestUser(t, router, "alice@example.com", "Alice", "user-a")
	bob := createTestUser(t, router, "bob@example.com", "Bob", "user-b")

	depRec := doJSON(t, router, http.MethodPost, "/api/ledger/deposit", depositRequest{UserID: alice, Amount: "100.00", Currency: "KES"}, "fund-alice")
	require.Equal(t, http.StatusCreated, depRec.Code)

	trfRec := doJSON(t, router, http.MethodPost, "/api/ledger/transfer", transferRequest{SourceUserID: alice, DestinationUserID: bob, Amount: "40.00", Currency: "KES"}, "transfer-1")
	require.Equal(t, http.StatusCreated, trfRec.Code)

	aliceBal := doJSON(t, router, http.MethodGet, "/api/ledger/balance/"+alice.String(), nil, "")
	var aliceResp UserBalanceResponse
	require.NoError(t, json.Unmarshal(aliceBal.Body.Bytes(), &aliceResp))
	assert.Equal(t, "60.00", aliceResp.Accounts[0].Balance)

	bobBal := doJSON(t, router, http.MethodGet, "/api/ledger/balance/"+bob.String(), nil, "")
	var bobResp UserBalanceResponse
	require.NoError(t, json.Unmarshal(bobBal.Body.Bytes(), &bobResp))
	assert.Equal(t, "40.00", bobResp.Accounts[0].Balance)
}

func TestWithdrawRejectsInsufficientFundsOverHTTP(t *testing.T) {
	deps := newTestDeps()
	router := newTestRouter(deps)
	userID := createTestUser(t, router, "broke@example.com", "No Funds", "user-key")

	rec := doJSON(t, router, http.MethodPost, "/api/ledger/withdraw", withdrawRequest{UserID: userID, Amount: "10.00", Currency: "EUR"}, "wd-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "INSUFFICIENT_FUNDS", apiErr["code"])
}
