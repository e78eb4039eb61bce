package state

import (
	"fmt"

	"github.com/holiman/uint256"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBaseBalances  = []byte("base_balances")
	bucketTokenBalances = []byte("token_balances")
)

// BaseLedger tracks base currency balances per account. All engine custody
// moves happen as transfers inside one transaction.
type BaseLedger struct {
	txRunner
}

func readBalance(bucket *bolt.Bucket, key []byte) (*uint256.Int, error) {
	raw := bucket.Get(key)
	if raw == nil {
		return uint256.NewInt(0), nil
	}
	return decodeAmount(string(raw))
}

func writeBalance(bucket *bolt.Bucket, key []byte, balance *uint256.Int) error {
	return bucket.Put(key, []byte(balance.Dec()))
}

func (l *BaseLedger) Balance(account [20]byte) (*uint256.Int, error) {
	var balance *uint256.Int
	err := l.view(func(tx *bolt.Tx) error {
		var err error
		balance, err = readBalance(tx.Bucket(bucketBaseBalances), account[:])
		return err
	})
	return balance, err
}

// Credit increases an account balance. Used to seed accounts from host
// deposits.
func (l *BaseLedger) Credit(account [20]byte, amount *uint256.Int) error {
	return l.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBaseBalances)
		balance, err := readBalance(bucket, account[:])
		if err != nil {
			return err
		}
		updated, overflow := new(uint256.Int).AddOverflow(balance, amount)
		if overflow {
			return fmt.Errorf("state: credit overflows balance of %x", account)
		}
		return writeBalance(bucket, account[:], updated)
	})
}

// Transfer moves amount between two accounts atomically. A self-transfer only
// checks the balance.
func (l *BaseLedger) Transfer(from, to [20]byte, amount *uint256.Int) error {
	return l.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBaseBalances)
		fromBalance, err := readBalance(bucket, from[:])
		if err != nil {
			return err
		}
		if fromBalance.Lt(amount) {
			return ErrInsufficientBalance
		}
		if from == to {
			return nil
		}
		toBalance, err := readBalance(bucket, to[:])
		if err != nil {
			return err
		}
		updated, overflow := new(uint256.Int).AddOverflow(toBalance, amount)
		if overflow {
			return fmt.Errorf("state: transfer overflows balance of %x", to)
		}
		if err := writeBalance(bucket, from[:], new(uint256.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		return writeBalance(bucket, to[:], updated)
	})
}

// TokenLedger tracks balances for arbitrary tokens, keyed by token address
// then holder.
type TokenLedger struct {
	txRunner
}

func tokenKey(token, holder [20]byte) []byte {
	key := make([]byte, 0, 40)
	key = append(key, token[:]...)
	return append(key, holder[:]...)
}

func (l *TokenLedger) BalanceOf(token, holder [20]byte) (*uint256.Int, error) {
	var balance *uint256.Int
	err := l.view(func(tx *bolt.Tx) error {
		var err error
		balance, err = readBalance(tx.Bucket(bucketTokenBalances), tokenKey(token, holder))
		return err
	})
	return balance, err
}

func (l *TokenLedger) Mint(token, to [20]byte, amount *uint256.Int) error {
	return l.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketTokenBalances)
		key := tokenKey(token, to)
		balance, err := readBalance(bucket, key)
		if err != nil {
			return err
		}
		updated, overflow := new(uint256.Int).AddOverflow(balance, amount)
		if overflow {
			return fmt.Errorf("state: mint overflows %x balance of %x", token, to)
		}
		return writeBalance(bucket, key, updated)
	})
}

func (l *TokenLedger) Burn(token, from [20]byte, amount *uint256.Int) error {
	return l.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketTokenBalances)
		key := tokenKey(token, from)
		balance, err := readBalance(bucket, key)
		if err != nil {
			return err
		}
		if balance.Lt(amount) {
			return ErrInsufficientBalance
		}
		return writeBalance(bucket, key, new(uint256.Int).Sub(balance, amount))
	})
}

func (l *TokenLedger) Transfer(token, from, to [20]byte, amount *uint256.Int) error {
	return l.update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketTokenBalances)
		fromKey := tokenKey(token, from)
		fromBalance, err := readBalance(bucket, fromKey)
		if err != nil {
			return err
		}
		if fromBalance.Lt(amount) {
			return ErrInsufficientBalance
		}
		if from == to {
			return nil
		}
		toKey := tokenKey(token, to)
		toBalance, err := readBalance(bucket, toKey)
		if err != nil {
			return err
		}
		updated, overflow := new(uint256.Int).AddOverflow(toBalance, amount)
		if overflow {
			return fmt.Errorf("state: transfer overflows %x balance of %x", token, to)
		}
		if err := writeBalance(bucket, fromKey, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		return writeBalance(bucket, toKey, updated)
	})
}
