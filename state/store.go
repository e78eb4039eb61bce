package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"

	"launchforge/native/synth"
	"launchforge/native/transformer"
)

var (
	bucketTransformer   = []byte("transformer")
	bucketInvestors     = []byte("investors")
	bucketUniqueIndex   = []byte("unique_investors")
	bucketSynth         = []byte("synth")
	bucketSynthBalances = []byte("synth_balances")

	keyGlobals    = []byte("globals")
	keySettings   = []byte("settings")
	keyLifecycle  = []byte("lifecycle")
	keyEvaluation = []byte("evaluation")

	// ErrIndexOccupied is returned when a unique-investor slot is written
	// twice. The index is append-only.
	ErrIndexOccupied = errors.New("state: unique investor index occupied")
	// ErrInsufficientBalance is returned when a burn or transfer exceeds the
	// holder's balance.
	ErrInsufficientBalance = errors.New("state: amount exceeds balance")
)

// Store persists engine state in a single BoltDB file. Update scopes one
// engine operation to one transaction; the plain view accessors run each call
// in its own read or write transaction.
type Store struct {
	db *bolt.DB
}

// txRunner runs a view's callbacks against either the shared handle or one
// enclosing writable transaction.
type txRunner struct {
	db *bolt.DB
	tx *bolt.Tx
}

func (r txRunner) view(fn func(*bolt.Tx) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.db.View(fn)
}

func (r txRunner) update(fn func(*bolt.Tx) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.db.Update(fn)
}

// Tx binds every store view to a single writable transaction so one engine
// operation commits or rolls back as a unit.
type Tx struct {
	tx *bolt.Tx
}

func (t *Tx) Transformer() *TransformerState { return &TransformerState{txRunner{tx: t.tx}} }

func (t *Tx) Synth() *SynthState { return &SynthState{txRunner{tx: t.tx}} }

func (t *Tx) SynthLedger() *SynthLedger { return &SynthLedger{txRunner{tx: t.tx}} }

func (t *Tx) BaseLedger() *BaseLedger { return &BaseLedger{txRunner{tx: t.tx}} }

func (t *Tx) TokenLedger() *TokenLedger { return &TokenLedger{txRunner{tx: t.tx}} }

// Update runs fn inside one writable transaction. Any error rolls back every
// write made through the transaction's views.
func (s *Store) Update(fn func(*Tx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

// Open initialises the BoltDB-backed store and creates the buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTransformer, bucketInvestors, bucketUniqueIndex, bucketSynth, bucketSynthBalances, bucketBaseBalances, bucketTokenBalances} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Transformer returns the transformer engine's view of the store.
func (s *Store) Transformer() *TransformerState { return &TransformerState{txRunner{db: s.db}} }

// Synth returns the peg engine's view of the store.
func (s *Store) Synth() *SynthState { return &SynthState{txRunner{db: s.db}} }

// SynthLedger returns the synthetic token supply ledger.
func (s *Store) SynthLedger() *SynthLedger { return &SynthLedger{txRunner{db: s.db}} }

// BaseLedger returns the base currency account ledger.
func (s *Store) BaseLedger() *BaseLedger { return &BaseLedger{txRunner{db: s.db}} }

// TokenLedger returns the per-token balance ledger.
func (s *Store) TokenLedger() *TokenLedger { return &TokenLedger{txRunner{db: s.db}} }

// Amounts are stored as decimal strings inside RLP records.

func encodeAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func decodeAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("state: malformed amount %q: %w", s, err)
	}
	return v, nil
}

func putRecord(bucket *bolt.Bucket, key []byte, record interface{}) error {
	raw, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	return bucket.Put(key, raw)
}

// --- transformer state --- //

type storedGlobals struct {
	TotalContributed string
	TotalTokensSold  string
	InvestorCount    uint64
	CashBackTotal    string
	Settled          bool
}

type storedInvestor struct {
	Contributed     string
	TokensPurchased string
}

type storedTransformerSettings struct {
	ClaimToken  [20]byte
	Pair        [20]byte
	Synthetic   [20]byte
	WrappedBase [20]byte
	Keeper      [20]byte
}

// TransformerState implements the transformer engine's state interface over
// BoltDB.
type TransformerState struct {
	txRunner
}

func (t *TransformerState) GlobalsGet() (*transformer.Globals, error) {
	var globals *transformer.Globals
	err := t.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTransformer).Get(keyGlobals)
		if raw == nil {
			return nil
		}
		var stored storedGlobals
		if err := rlp.DecodeBytes(raw, &stored); err != nil {
			return err
		}
		contributed, err := decodeAmount(stored.TotalContributed)
		if err != nil {
			return err
		}
		sold, err := decodeAmount(stored.TotalTokensSold)
		if err != nil {
			return err
		}
		cashBack, err := decodeAmount(stored.CashBackTotal)
		if err != nil {
			return err
		}
		globals = &transformer.Globals{
			TotalContributed: contributed,
			TotalTokensSold:  sold,
			InvestorCount:    stored.InvestorCount,
			CashBackTotal:    cashBack,
			Settled:          stored.Settled,
		}
		return nil
	})
	return globals, err
}

func (t *TransformerState) GlobalsPut(globals *transformer.Globals) error {
	globals = globals.Clone()
	return t.update(func(tx *bolt.Tx) error {
		return putRecord(tx.Bucket(bucketTransformer), keyGlobals, &storedGlobals{
			TotalContributed: encodeAmount(globals.TotalContributed),
			TotalTokensSold:  encodeAmount(globals.TotalTokensSold),
			InvestorCount:    globals.InvestorCount,
			CashBackTotal:    encodeAmount(globals.CashBackTotal),
			Settled:          globals.Settled,
		})
	})
}

func (t *TransformerState) SettingsGet() (*transformer.Settings, error) {
	var settings *transformer.Settings
	err := t.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTransformer).Get(keySettings)
		if raw == nil {
			return nil
		}
		var stored storedTransformerSettings
		if err := rlp.DecodeBytes(raw, &stored); err != nil {
			return err
		}
		settings = &transformer.Settings{
			ClaimToken:  stored.ClaimToken,
			Pair:        stored.Pair,
			Synthetic:   stored.Synthetic,
			WrappedBase: stored.WrappedBase,
			Keeper:      stored.Keeper,
		}
		return nil
	})
	return settings, err
}

func (t *TransformerState) SettingsPut(settings *transformer.Settings) error {
	settings = settings.Clone()
	return t.update(func(tx *bolt.Tx) error {
		return putRecord(tx.Bucket(bucketTransformer), keySettings, &storedTransformerSettings{
			ClaimToken:  settings.ClaimToken,
			Pair:        settings.Pair,
			Synthetic:   settings.Synthetic,
			WrappedBase: settings.WrappedBase,
			Keeper:      settings.Keeper,
		})
	})
}

func (t *TransformerState) InvestorGet(key [32]byte) (*transformer.InvestorRecord, error) {
	var record *transformer.InvestorRecord
	err := t.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketInvestors).Get(key[:])
		if raw == nil {
			return nil
		}
		var stored storedInvestor
		if err := rlp.DecodeBytes(raw, &stored); err != nil {
			return err
		}
		contributed, err := decodeAmount(stored.Contributed)
		if err != nil {
			return err
		}
		tokens, err := decodeAmount(stored.TokensPurchased)
		if err != nil {
			return err
		}
		record = &transformer.InvestorRecord{
			Contributed:     contributed,
			TokensPurchased: tokens,
		}
		return nil
	})
	return record, err
}

func (t *TransformerState) InvestorPut(key [32]byte, record *transformer.InvestorRecord) error {
	record = record.Clone()
	return t.update(func(tx *bolt.Tx) error {
		return putRecord(tx.Bucket(bucketInvestors), key[:], &storedInvestor{
			Contributed:     encodeAmount(record.Contributed),
			TokensPurchased: encodeAmount(record.TokensPurchased),
		})
	})
}

func uniqueIndexKey(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)
	return key
}

func (t *TransformerState) UniqueInvestorPut(index uint64, addr [20]byte) error {
	return t.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketUniqueIndex)
		key := uniqueIndexKey(index)
		if bucket.Get(key) != nil {
			return ErrIndexOccupied
		}
		return bucket.Put(key, addr[:])
	})
}

func (t *TransformerState) UniqueInvestorAt(index uint64) ([20]byte, bool, error) {
	var addr [20]byte
	var found bool
	err := t.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketUniqueIndex).Get(uniqueIndexKey(index))
		if raw == nil {
			return nil
		}
		if len(raw) != len(addr) {
			return fmt.Errorf("state: malformed investor address at index %d", index)
		}
		copy(addr[:], raw)
		found = true
		return nil
	})
	return addr, found, err
}

// --- synth state --- //

type storedLifecycle struct {
	AllowDeposit  bool
	TokenDefined  bool
	HelperDefined bool
	BypassEnabled bool
	Master        [20]byte
}

type storedSynthSettings struct {
	Pair         [20]byte
	WrappedToken [20]byte
	Transformer  [20]byte
}

// SynthState implements the peg engine's state interface over BoltDB.
type SynthState struct {
	txRunner
}

func (s *SynthState) LifecycleGet() (*synth.Lifecycle, error) {
	var lifecycle *synth.Lifecycle
	err := s.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSynth).Get(keyLifecycle)
		if raw == nil {
			return nil
		}
		var stored storedLifecycle
		if err := rlp.DecodeBytes(raw, &stored); err != nil {
			return err
		}
		lifecycle = &synth.Lifecycle{
			AllowDeposit:  stored.AllowDeposit,
			TokenDefined:  stored.TokenDefined,
			HelperDefined: stored.HelperDefined,
			BypassEnabled: stored.BypassEnabled,
			Master:        stored.Master,
		}
		return nil
	})
	return lifecycle, err
}

func (s *SynthState) LifecyclePut(lifecycle *synth.Lifecycle) error {
	lifecycle = lifecycle.Clone()
	return s.update(func(tx *bolt.Tx) error {
		return putRecord(tx.Bucket(bucketSynth), keyLifecycle, &storedLifecycle{
			AllowDeposit:  lifecycle.AllowDeposit,
			TokenDefined:  lifecycle.TokenDefined,
			HelperDefined: lifecycle.HelperDefined,
			BypassEnabled: lifecycle.BypassEnabled,
			Master:        lifecycle.Master,
		})
	})
}

func (s *SynthState) SettingsGet() (*synth.Settings, error) {
	var settings *synth.Settings
	err := s.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSynth).Get(keySettings)
		if raw == nil {
			return nil
		}
		var stored storedSynthSettings
		if err := rlp.DecodeBytes(raw, &stored); err != nil {
			return err
		}
		settings = &synth.Settings{
			Pair:         stored.Pair,
			WrappedToken: stored.WrappedToken,
			Transformer:  stored.Transformer,
		}
		return nil
	})
	return settings, err
}

func (s *SynthState) SettingsPut(settings *synth.Settings) error {
	settings = settings.Clone()
	return s.update(func(tx *bolt.Tx) error {
		return putRecord(tx.Bucket(bucketSynth), keySettings, &storedSynthSettings{
			Pair:         settings.Pair,
			WrappedToken: settings.WrappedToken,
			Transformer:  settings.Transformer,
		})
	})
}

func (s *SynthState) EvaluationGet() (*uint256.Int, error) {
	evaluation := uint256.NewInt(0)
	err := s.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSynth).Get(keyEvaluation)
		if raw == nil {
			return nil
		}
		decoded, err := decodeAmount(string(raw))
		if err != nil {
			return err
		}
		evaluation = decoded
		return nil
	})
	return evaluation, err
}

func (s *SynthState) EvaluationPut(v *uint256.Int) error {
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSynth).Put(keyEvaluation, []byte(encodeAmount(v)))
	})
}

// --- synth ledger --- //

// SynthLedger tracks synthetic token balances per holder.
type SynthLedger struct {
	txRunner
}

func (l *SynthLedger) balance(bucket *bolt.Bucket, holder [20]byte) (*uint256.Int, error) {
	raw := bucket.Get(holder[:])
	if raw == nil {
		return uint256.NewInt(0), nil
	}
	return decodeAmount(string(raw))
}

func (l *SynthLedger) Mint(to [20]byte, amount *uint256.Int) error {
	return l.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSynthBalances)
		balance, err := l.balance(bucket, to)
		if err != nil {
			return err
		}
		updated, overflow := new(uint256.Int).AddOverflow(balance, amount)
		if overflow {
			return fmt.Errorf("state: mint overflows balance of %x", to)
		}
		return bucket.Put(to[:], []byte(updated.Dec()))
	})
}

func (l *SynthLedger) Burn(from [20]byte, amount *uint256.Int) error {
	return l.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSynthBalances)
		balance, err := l.balance(bucket, from)
		if err != nil {
			return err
		}
		if balance.Lt(amount) {
			return ErrInsufficientBalance
		}
		return bucket.Put(from[:], []byte(new(uint256.Int).Sub(balance, amount).Dec()))
	})
}

// Transfer moves synthetic tokens between holders atomically. A self-transfer
// only checks the balance.
func (l *SynthLedger) Transfer(from, to [20]byte, amount *uint256.Int) error {
	return l.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSynthBalances)
		fromBalance, err := l.balance(bucket, from)
		if err != nil {
			return err
		}
		if fromBalance.Lt(amount) {
			return ErrInsufficientBalance
		}
		if from == to {
			return nil
		}
		toBalance, err := l.balance(bucket, to)
		if err != nil {
			return err
		}
		updated, overflow := new(uint256.Int).AddOverflow(toBalance, amount)
		if overflow {
			return fmt.Errorf("state: transfer overflows balance of %x", to)
		}
		if err := bucket.Put(from[:], []byte(new(uint256.Int).Sub(fromBalance, amount).Dec())); err != nil {
			return err
		}
		return bucket.Put(to[:], []byte(updated.Dec()))
	})
}

func (l *SynthLedger) BalanceOf(holder [20]byte) (*uint256.Int, error) {
	var balance *uint256.Int
	err := l.view(func(tx *bolt.Tx) error {
		var err error
		balance, err = l.balance(tx.Bucket(bucketSynthBalances), holder)
		return err
	})
	return balance, err
}
