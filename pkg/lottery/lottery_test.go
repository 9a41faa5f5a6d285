package lottery

import (
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

type testAct struct {
	err error
	res *result.Invoke
	tx  *transaction.Transaction
	txh util.Uint256
	vub uint32

	method string
}

func (t *testAct) Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error) {
	t.method = operation
	return t.res, t.err
}
func (t *testAct) MakeCall(contract util.Uint160, method string, params ...any) (*transaction.Transaction, error) {
	t.method = method
	return t.tx, t.err
}
func (t *testAct) MakeRun(script []byte) (*transaction.Transaction, error) {
	return t.tx, t.err
}
func (t *testAct) MakeUnsignedCall(contract util.Uint160, method string, attrs []transaction.Attribute, params ...any) (*transaction.Transaction, error) {
	t.method = method
	return t.tx, t.err
}
func (t *testAct) MakeUnsignedRun(script []byte, attrs []transaction.Attribute) (*transaction.Transaction, error) {
	return t.tx, t.err
}
func (t *testAct) SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error) {
	t.method = method
	return t.txh, t.vub, t.err
}
func (t *testAct) SendRun(script []byte) (util.Uint256, uint32, error) {
	return t.txh, t.vub, t.err
}
func (t *testAct) Sender() util.Uint160 {
	return util.Uint160{4, 5, 6}
}

func halt(items ...stackitem.Item) *result.Invoke {
	return &result.Invoke{
		State: "HALT",
		Stack: items,
	}
}

func TestReaderPlayers(t *testing.T) {
	ta := new(testAct)
	lr := NewReader(ta, util.Uint160{1, 2, 3})
	require.Equal(t, util.Uint160{1, 2, 3}, lr.Hash())

	ta.err = errors.New("")
	_, err := lr.Players()
	require.Error(t, err)

	ta.err = nil
	ta.res = halt(stackitem.Make([]stackitem.Item{}))
	players, err := lr.Players()
	require.NoError(t, err)
	require.Equal(t, 0, len(players))
	require.Equal(t, "getPlayers", ta.method)

	ta.res = halt(stackitem.Make([]stackitem.Item{
		stackitem.Make(util.Uint160{3, 2, 1}.BytesBE()),
		stackitem.Make(util.Uint160{1, 2, 3}.BytesBE()),
	}))
	players, err = lr.Players()
	require.NoError(t, err)
	require.Equal(t, []util.Uint160{{3, 2, 1}, {1, 2, 3}}, players)

	ta.res = halt(stackitem.Make([]stackitem.Item{
		stackitem.Make([]byte{1, 2, 3}),
	}))
	_, err = lr.Players()
	require.ErrorContains(t, err, "player #0")

	ta.res = halt(stackitem.Make(42))
	_, err = lr.Players()
	require.Error(t, err)

	ta.res = &result.Invoke{State: "FAULT", FaultException: "boom"}
	_, err = lr.Players()
	require.Error(t, err)
}

func TestReaderManager(t *testing.T) {
	ta := new(testAct)
	lr := NewReader(ta, util.Uint160{1, 2, 3})

	ta.res = halt(stackitem.Make(util.Uint160{7, 8, 9}.BytesBE()))
	m, err := lr.Manager()
	require.NoError(t, err)
	require.Equal(t, util.Uint160{7, 8, 9}, m)
	require.Equal(t, "getManager", ta.method)

	ta.res = halt(stackitem.Make([]stackitem.Item{}))
	_, err = lr.Manager()
	require.Error(t, err)
}

func TestReaderIntegers(t *testing.T) {
	ta := new(testAct)
	lr := NewReader(ta, util.Uint160{1, 2, 3})

	ta.res = halt(stackitem.Make(1_000_000))
	stake, err := lr.MinStake()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000_000), stake)
	require.Equal(t, "getMinStake", ta.method)

	ta.res = halt(stackitem.Make(300_000_000))
	pot, err := lr.Pot()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300_000_000), pot)
	require.Equal(t, "getPot", ta.method)

	ta.res = halt(stackitem.Make(5))
	round, err := lr.Round()
	require.NoError(t, err)
	require.EqualValues(t, 5, round)
	require.Equal(t, "getRound", ta.method)

	ta.res = halt(stackitem.Make([]stackitem.Item{}))
	_, err = lr.Pot()
	require.Error(t, err)
	_, err = lr.Round()
	require.Error(t, err)
}

func TestReaderLastWinner(t *testing.T) {
	ta := new(testAct)
	lr := NewReader(ta, util.Uint160{1, 2, 3})

	ta.res = halt(stackitem.Null{})
	w, err := lr.LastWinner()
	require.NoError(t, err)
	require.Nil(t, w)
	require.Equal(t, "getLastWinner", ta.method)

	ta.res = halt(stackitem.Make(util.Uint160{3, 2, 1}.BytesBE()))
	w, err = lr.LastWinner()
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Equal(t, util.Uint160{3, 2, 1}, *w)

	ta.res = halt(stackitem.Make([]byte{1}))
	_, err = lr.LastWinner()
	require.Error(t, err)

	ta.res = halt()
	_, err = lr.LastWinner()
	require.Error(t, err)
}

func TestContractEnter(t *testing.T) {
	ta := new(testAct)
	lc := New(ta, util.Uint160{1, 2, 3})

	ta.err = errors.New("")
	_, _, err := lc.Enter(big.NewInt(2_000_000))
	require.Error(t, err)

	ta.err = nil
	ta.txh = util.Uint256{1, 2, 3}
	ta.vub = 42
	h, vub, err := lc.Enter(big.NewInt(2_000_000))
	require.NoError(t, err)
	require.Equal(t, ta.txh, h)
	require.Equal(t, ta.vub, vub)

	for _, fun := range []func(*big.Int) (*transaction.Transaction, error){
		lc.EnterTransaction,
		lc.EnterUnsigned,
	} {
		ta.err = errors.New("")
		_, err := fun(big.NewInt(2_000_000))
		require.Error(t, err)

		ta.err = nil
		ta.tx = &transaction.Transaction{Nonce: 100500, ValidUntilBlock: 42}
		tx, err := fun(big.NewInt(2_000_000))
		require.NoError(t, err)
		require.Equal(t, ta.tx, tx)
	}
}

func TestContractPickWinner(t *testing.T) {
	ta := new(testAct)
	lc := New(ta, util.Uint160{1, 2, 3})

	ta.err = errors.New("")
	_, _, err := lc.PickWinner()
	require.Error(t, err)

	ta.err = nil
	ta.txh = util.Uint256{1, 2, 3}
	ta.vub = 42
	h, vub, err := lc.PickWinner()
	require.NoError(t, err)
	require.Equal(t, ta.txh, h)
	require.Equal(t, ta.vub, vub)
	require.Equal(t, "pickWinner", ta.method)

	for _, fun := range []func() (*transaction.Transaction, error){
		lc.PickWinnerTransaction,
		lc.PickWinnerUnsigned,
	} {
		ta.err = errors.New("")
		_, err := fun()
		require.Error(t, err)

		ta.err = nil
		ta.method = ""
		ta.tx = &transaction.Transaction{Nonce: 100500, ValidUntilBlock: 42}
		tx, err := fun()
		require.NoError(t, err)
		require.Equal(t, ta.tx, tx)
		require.Equal(t, "pickWinner", ta.method)
	}
}

func TestEventsFromApplicationLog(t *testing.T) {
	hash := util.Uint160{1, 2, 3}
	other := util.Uint160{9, 9, 9}
	player := util.Uint160{4, 5, 6}

	_, err := EnteredEventsFromApplicationLog(nil, hash)
	require.Error(t, err)
	_, err = WinnerPickedEventsFromApplicationLog(nil, hash)
	require.Error(t, err)

	log := &result.ApplicationLog{
		Executions: []state.Execution{{
			Events: []state.NotificationEvent{
				{
					ScriptHash: hash,
					Name:       EnteredEventName,
					Item: stackitem.NewArray([]stackitem.Item{
						stackitem.Make(player.BytesBE()),
						stackitem.Make(2_000_000),
					}),
				},
				{
					ScriptHash: other,
					Name:       EnteredEventName,
					Item: stackitem.NewArray([]stackitem.Item{
						stackitem.Make(other.BytesBE()),
						stackitem.Make(1),
					}),
				},
				{
					ScriptHash: hash,
					Name:       WinnerPickedEventName,
					Item: stackitem.NewArray([]stackitem.Item{
						stackitem.Make(player.BytesBE()),
						stackitem.Make(2_000_000),
						stackitem.Make(1),
					}),
				},
			},
		}},
	}

	entered, err := EnteredEventsFromApplicationLog(log, hash)
	require.NoError(t, err)
	require.Equal(t, []*EnteredEvent{{Player: player, Amount: big.NewInt(2_000_000)}}, entered)

	picked, err := WinnerPickedEventsFromApplicationLog(log, hash)
	require.NoError(t, err)
	require.Equal(t, []*WinnerPickedEvent{{Winner: player, Prize: big.NewInt(2_000_000), Round: big.NewInt(1)}}, picked)

	log.Executions[0].Events[0].Item = stackitem.NewArray([]stackitem.Item{stackitem.Make(1)})
	_, err = EnteredEventsFromApplicationLog(log, hash)
	require.Error(t, err)
}

func TestEventFromStackItem(t *testing.T) {
	var e EnteredEvent
	require.Error(t, e.FromStackItem(nil))
	require.Error(t, e.FromStackItem(stackitem.NewArray([]stackitem.Item{
		stackitem.Make([]byte{1, 2}),
		stackitem.Make(1),
	})))
	require.Error(t, e.FromStackItem(stackitem.NewArray([]stackitem.Item{
		stackitem.Make(util.Uint160{}.BytesBE()),
		stackitem.Make([]stackitem.Item{}),
	})))

	var w WinnerPickedEvent
	require.Error(t, w.FromStackItem(stackitem.NewArray([]stackitem.Item{
		stackitem.Make(util.Uint160{}.BytesBE()),
		stackitem.Make(1),
	})))
	require.Error(t, w.FromStackItem(stackitem.NewArray([]stackitem.Item{
		stackitem.Make(util.Uint160{}.BytesBE()),
		stackitem.Make(1),
		stackitem.Make([]stackitem.Item{}),
	})))
	require.NoError(t, w.FromStackItem(stackitem.NewArray([]stackitem.Item{
		stackitem.Make(util.Uint160{}.BytesBE()),
		stackitem.Make(1),
		stackitem.Make(2),
	})))
	require.Equal(t, big.NewInt(2), w.Round)
}
