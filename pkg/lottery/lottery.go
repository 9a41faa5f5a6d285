/*
Package lottery provides an RPC wrapper for the Lottery contract.

Safe methods are encapsulated into ContractReader structure while Contract
provides methods to enter the lottery and to pick a winner. Entering is a
plain GAS transfer to the contract, so it's done via the GAS token wrapper.
*/
package lottery

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/gas"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/nep17"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

const (
	// EnteredEventName is the name of the event emitted on every entry.
	EnteredEventName = "Entered"
	// WinnerPickedEventName is the name of the event emitted on every draw.
	WinnerPickedEventName = "WinnerPicked"
)

// Invoker is used by ContractReader to call various safe methods.
type Invoker interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
}

// Actor is used by Contract to create and send transactions.
type Actor interface {
	Invoker

	MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error)
	MakeRun(script []byte) (*transaction.Transaction, error)
	MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error)
	MakeUnsignedRun(script []byte, attrs []transaction.Attribute) (*transaction.Transaction, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	SendRun(script []byte) (util.Uint256, uint32, error)
	Sender() util.Uint160
}

// ContractReader implements safe Lottery methods.
type ContractReader struct {
	invoker Invoker
	hash    util.Uint160
}

// Contract implements all Lottery methods.
type Contract struct {
	ContractReader

	actor Actor
	gas   *nep17.Token
}

// EnteredEvent represents "Entered" event emitted by the contract.
type EnteredEvent struct {
	Player util.Uint160
	Amount *big.Int
}

// WinnerPickedEvent represents "WinnerPicked" event emitted by the contract.
type WinnerPickedEvent struct {
	Winner util.Uint160
	Prize  *big.Int
	Round  *big.Int
}

// NewReader creates an instance of ContractReader for the contract with the
// given hash using the given Invoker.
func NewReader(invoker Invoker, hash util.Uint160) *ContractReader {
	return &ContractReader{invoker, hash}
}

// New creates an instance of Contract for the contract with the given hash
// using the given Actor. Entries are paid by the Actor's sender.
func New(actor Actor, hash util.Uint160) *Contract {
	return &Contract{*NewReader(actor, hash), actor, nep17.New(actor, gas.Hash)}
}

// Hash returns the contract hash.
func (c *ContractReader) Hash() util.Uint160 {
	return c.hash
}

// Players returns the players of the current round in the order they entered.
func (c *ContractReader) Players() ([]util.Uint160, error) {
	items, err := unwrap.Array(c.invoker.Call(c.hash, "getPlayers"))
	if err != nil {
		return nil, err
	}
	res := make([]util.Uint160, len(items))
	for i, itm := range items {
		res[i], err = uint160FromItem(itm)
		if err != nil {
			return nil, fmt.Errorf("player #%d: %w", i, err)
		}
	}
	return res, nil
}

// Manager returns the lottery manager.
func (c *ContractReader) Manager() (util.Uint160, error) {
	return unwrap.Uint160(c.invoker.Call(c.hash, "getManager"))
}

// MinStake returns the exclusive lower bound of an entry.
func (c *ContractReader) MinStake() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "getMinStake"))
}

// Pot returns the amount of GAS the winner of the current round gets.
func (c *ContractReader) Pot() (*big.Int, error) {
	return unwrap.BigInt(c.invoker.Call(c.hash, "getPot"))
}

// Round returns the number of completed draws.
func (c *ContractReader) Round() (int64, error) {
	return unwrap.Int64(c.invoker.Call(c.hash, "getRound"))
}

// LastWinner returns the winner of the latest draw. It returns nil if there
// were no draws yet.
func (c *ContractReader) LastWinner() (*util.Uint160, error) {
	itm, err := unwrap.Item(c.invoker.Call(c.hash, "getLastWinner"))
	if err != nil {
		return nil, err
	}
	if _, ok := itm.(stackitem.Null); ok {
		return nil, nil
	}
	u, err := uint160FromItem(itm)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Enter creates and sends a transaction transferring the given amount of GAS
// from the Actor's sender to the contract. The amount must be bigger than
// MinStake for the entry to be accepted. This transaction is signed and
// immediately sent to the network. The values returned are its hash,
// ValidUntilBlock value and error if any.
func (c *Contract) Enter(amount *big.Int) (util.Uint256, uint32, error) {
	return c.gas.Transfer(c.actor.Sender(), c.hash, amount, nil)
}

// EnterTransaction is similar to Enter, but it returns a signed transaction
// without sending it.
func (c *Contract) EnterTransaction(amount *big.Int) (*transaction.Transaction, error) {
	return c.gas.TransferTransaction(c.actor.Sender(), c.hash, amount, nil)
}

// EnterUnsigned is similar to Enter, but it returns an unsigned transaction
// that has all the fees calculated.
func (c *Contract) EnterUnsigned(amount *big.Int) (*transaction.Transaction, error) {
	return c.gas.TransferUnsigned(c.actor.Sender(), c.hash, amount, nil)
}

// PickWinner creates and sends a transaction picking the winner of the current
// round. Only the manager can do that, so the Actor must have it as a signer.
// This transaction is signed and immediately sent to the network. The values
// returned are its hash, ValidUntilBlock value and error if any.
func (c *Contract) PickWinner() (util.Uint256, uint32, error) {
	return c.actor.SendCall(c.hash, "pickWinner")
}

// PickWinnerTransaction is similar to PickWinner, but it returns a signed
// transaction without sending it.
func (c *Contract) PickWinnerTransaction() (*transaction.Transaction, error) {
	return c.actor.MakeCall(c.hash, "pickWinner")
}

// PickWinnerUnsigned is similar to PickWinner, but it returns an unsigned
// transaction that has all the fees calculated.
func (c *Contract) PickWinnerUnsigned() (*transaction.Transaction, error) {
	return c.actor.MakeUnsignedCall(c.hash, "pickWinner", nil)
}

// EnteredEventsFromApplicationLog retrieves a set of all "Entered" events
// emitted by the contract with the given hash from the provided ApplicationLog.
func EnteredEventsFromApplicationLog(log *result.ApplicationLog, hash util.Uint160) ([]*EnteredEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*EnteredEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != EnteredEventName || !e.ScriptHash.Equals(hash) {
				continue
			}
			event := new(EnteredEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize EnteredEvent from stackitem (execution %d, event %d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}
	return res, nil
}

// WinnerPickedEventsFromApplicationLog retrieves a set of all "WinnerPicked"
// events emitted by the contract with the given hash from the provided
// ApplicationLog.
func WinnerPickedEventsFromApplicationLog(log *result.ApplicationLog, hash util.Uint160) ([]*WinnerPickedEvent, error) {
	if log == nil {
		return nil, errors.New("nil application log")
	}

	var res []*WinnerPickedEvent
	for i, ex := range log.Executions {
		for j, e := range ex.Events {
			if e.Name != WinnerPickedEventName || !e.ScriptHash.Equals(hash) {
				continue
			}
			event := new(WinnerPickedEvent)
			err := event.FromStackItem(e.Item)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize WinnerPickedEvent from stackitem (execution %d, event %d): %w", i, j, err)
			}
			res = append(res, event)
		}
	}
	return res, nil
}

// FromStackItem converts provided stackitem.Array to EnteredEvent and
// returns an error if it's not possible.
func (e *EnteredEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventFields(item, 2)
	if err != nil {
		return err
	}
	e.Player, err = uint160FromItem(arr[0])
	if err != nil {
		return fmt.Errorf("field Player: %w", err)
	}
	e.Amount, err = arr[1].TryInteger()
	if err != nil {
		return fmt.Errorf("field Amount: %w", err)
	}
	return nil
}

// FromStackItem converts provided stackitem.Array to WinnerPickedEvent and
// returns an error if it's not possible.
func (e *WinnerPickedEvent) FromStackItem(item *stackitem.Array) error {
	arr, err := eventFields(item, 3)
	if err != nil {
		return err
	}
	e.Winner, err = uint160FromItem(arr[0])
	if err != nil {
		return fmt.Errorf("field Winner: %w", err)
	}
	e.Prize, err = arr[1].TryInteger()
	if err != nil {
		return fmt.Errorf("field Prize: %w", err)
	}
	e.Round, err = arr[2].TryInteger()
	if err != nil {
		return fmt.Errorf("field Round: %w", err)
	}
	return nil
}

func eventFields(item *stackitem.Array, n int) ([]stackitem.Item, error) {
	if item == nil {
		return nil, errors.New("nil item")
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok {
		return nil, errors.New("not an array")
	}
	if len(arr) != n {
		return nil, errors.New("wrong number of structure elements")
	}
	return arr, nil
}

func uint160FromItem(item stackitem.Item) (util.Uint160, error) {
	b, err := item.TryBytes()
	if err != nil {
		return util.Uint160{}, err
	}
	return util.Uint160DecodeBytesBE(b)
}
