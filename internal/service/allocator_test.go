package service

import (
	"context"
	"testing"
	"time"

	"github.com/Olleigeigei/ObeliskUsdt/internal/model"
	"github.com/shopspring/decimal"
)

func testWallets(addrs ...string) []model.Wallet {
	wallets := make([]model.Wallet, 0, len(addrs))
	for i, addr := range addrs {
		wallets = append(wallets, model.Wallet{ID: uint(i + 1), Address: addr, IsActive: true})
	}
	return wallets
}

func TestSearchAllocationFirstOffset(t *testing.T) {
	locker := NewMemoryLocker()
	wallets := testWallets("TWalletA111111111111111111111111111")
	base := decimal.RequireFromString("10")

	alloc, err := searchAllocation(context.Background(), locker, wallets, base, time.Minute)
	if err != nil {
		t.Fatalf("searchAllocation: %v", err)
	}
	if alloc.AmountStr != "10.0001" {
		t.Errorf("首个分配应为最小偏移: %s", alloc.AmountStr)
	}
	if alloc.WalletAddress != wallets[0].Address {
		t.Errorf("应分配到首个钱包: %s", alloc.WalletAddress)
	}
	if alloc.LockKey != AllocLockKey(wallets[0].Address, "10.0001") {
		t.Errorf("锁键错误: %s", alloc.LockKey)
	}
}

func TestSearchAllocationSequence(t *testing.T) {
	locker := NewMemoryLocker()
	wallets := testWallets("TWalletA111111111111111111111111111")
	base := decimal.RequireFromString("10")
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		alloc, err := searchAllocation(ctx, locker, wallets, base, time.Minute)
		if err != nil {
			t.Fatalf("第%d次分配失败: %v", i+1, err)
		}
		if seen[alloc.AmountStr] {
			t.Fatalf("金额重复分配: %s", alloc.AmountStr)
		}
		seen[alloc.AmountStr] = true
	}

	// 单钱包下应为 10.0001 ~ 10.0005
	for _, want := range []string{"10.0001", "10.0002", "10.0003", "10.0004", "10.0005"} {
		if !seen[want] {
			t.Errorf("缺少金额 %s", want)
		}
	}
}

func TestSearchAllocationAmountOuterWalletInner(t *testing.T) {
	locker := NewMemoryLocker()
	wallets := testWallets(
		"TWalletA111111111111111111111111111",
		"TWalletB111111111111111111111111111",
	)
	base := decimal.RequireFromString("10")
	ctx := context.Background()

	first, _ := searchAllocation(ctx, locker, wallets, base, time.Minute)
	second, _ := searchAllocation(ctx, locker, wallets, base, time.Minute)
	third, _ := searchAllocation(ctx, locker, wallets, base, time.Minute)

	// 同一偏移先在所有钱包上尝试，再推进到下一偏移
	if first.AmountStr != "10.0001" || first.WalletAddress != wallets[0].Address {
		t.Errorf("first = %s/%s", first.AmountStr, first.WalletAddress)
	}
	if second.AmountStr != "10.0001" || second.WalletAddress != wallets[1].Address {
		t.Errorf("second = %s/%s", second.AmountStr, second.WalletAddress)
	}
	if third.AmountStr != "10.0002" || third.WalletAddress != wallets[0].Address {
		t.Errorf("third = %s/%s", third.AmountStr, third.WalletAddress)
	}
}

func TestSearchAllocationReuseAfterRelease(t *testing.T) {
	locker := NewMemoryLocker()
	wallets := testWallets("TWalletA111111111111111111111111111")
	base := decimal.RequireFromString("10")
	ctx := context.Background()

	first, _ := searchAllocation(ctx, locker, wallets, base, time.Minute)
	if err := locker.Release(ctx, first.LockKey); err != nil {
		t.Fatalf("Release: %v", err)
	}

	again, err := searchAllocation(ctx, locker, wallets, base, time.Minute)
	if err != nil {
		t.Fatalf("searchAllocation: %v", err)
	}
	if again.AmountStr != first.AmountStr {
		t.Errorf("释放后应重新分配相同金额: %s vs %s", again.AmountStr, first.AmountStr)
	}
}

func TestSearchAllocationNoWallets(t *testing.T) {
	_, err := searchAllocation(context.Background(), NewMemoryLocker(), nil, decimal.RequireFromString("10"), time.Minute)
	if err != ErrNoWalletsAvailable {
		t.Errorf("err = %v, want ErrNoWalletsAvailable", err)
	}
}

func TestSearchAllocationCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := searchAllocation(ctx, NewMemoryLocker(), testWallets("TWalletA111111111111111111111111111"), decimal.RequireFromString("10"), time.Minute)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSearchAllocationDecimalPrecision(t *testing.T) {
	locker := NewMemoryLocker()
	wallets := testWallets("TWalletA111111111111111111111111111")

	// 带2位小数的基础金额偏移累加不应丢失精度
	alloc, err := searchAllocation(context.Background(), locker, wallets, decimal.RequireFromString("99.99"), time.Minute)
	if err != nil {
		t.Fatalf("searchAllocation: %v", err)
	}
	if alloc.AmountStr != "99.9901" {
		t.Errorf("AmountStr = %s, want 99.9901", alloc.AmountStr)
	}
}
