package services_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sofia/internal/core"
	"sofia/internal/metrics"
	"sofia/internal/services"
	"sofia/internal/sheets/memory"
)

type recordingPublisher struct {
	mu      sync.Mutex
	created []core.Expense
	deleted []core.Expense
	err     error
}

func (p *recordingPublisher) PublishExpenseCreated(_ context.Context, e core.Expense) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.created = append(p.created, e)
	return nil
}

func (p *recordingPublisher) PublishExpenseDeleted(_ context.Context, e core.Expense) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.deleted = append(p.deleted, e)
	return nil
}

type brokenStore struct{ *memory.Store }

func (brokenStore) Append(context.Context, core.Expense) (string, error) {
	return "", errors.New("disk full")
}

var _ = Describe("ExpenseService", func() {
	var (
		ctx       context.Context
		store     *memory.Store
		publisher *recordingPublisher
		service   *services.ExpenseService
		valid     services.NewExpense
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.New()
		publisher = &recordingPublisher{}
		service = services.NewExpenseService(store, publisher, metrics.New())
		valid = services.NewExpense{
			Payer:       "leslie",
			Amount:      "250.00",
			Description: "  Textbooks  ",
			Date:        "2024-01-15",
			Note:        "fall term",
		}
	})

	Describe("CreateExpense", func() {
		It("should save a parsed expense with an ID and timestamp", func() {
			e, err := service.CreateExpense(ctx, valid)
			Expect(err).NotTo(HaveOccurred())

			Expect(e.ID).NotTo(BeEmpty())
			Expect(e.Timestamp.IsZero()).To(BeFalse())
			Expect(e.Payer).To(Equal(core.PayerLeslie))
			Expect(e.Amount.Cents).To(Equal(int64(25000)))
			Expect(e.Description).To(Equal("Textbooks"))
			Expect(e.Date).To(Equal(core.NewDate(2024, 1, 15)))

			list, err := service.ListExpenses(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].ID).To(Equal(e.ID))
		})

		It("should publish an expense.created event", func() {
			e, err := service.CreateExpense(ctx, valid)
			Expect(err).NotTo(HaveOccurred())
			Expect(publisher.created).To(HaveLen(1))
			Expect(publisher.created[0].ID).To(Equal(e.ID))
		})

		It("should record an add activity entry", func() {
			e, err := service.CreateExpense(ctx, valid)
			Expect(err).NotTo(HaveOccurred())

			activity, err := service.ListActivity(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(activity).To(HaveLen(1))
			Expect(activity[0].Action).To(Equal(core.ActionAdd))
			Expect(activity[0].ExpenseID).To(Equal(e.ID))
		})

		It("should still succeed when publishing fails", func() {
			publisher.err = errors.New("broker unavailable")
			_, err := service.CreateExpense(ctx, valid)
			Expect(err).NotTo(HaveOccurred())

			list, _ := service.ListExpenses(ctx)
			Expect(list).To(HaveLen(1))
		})

		It("should work without a publisher", func() {
			service = services.NewExpenseService(store, nil, nil)
			_, err := service.CreateExpense(ctx, valid)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("should reject invalid input",
			func(mutate func(*services.NewExpense), target error) {
				in := valid
				mutate(&in)
				_, err := service.CreateExpense(ctx, in)
				Expect(err).To(MatchError(target))
				Expect(core.IsValidation(err)).To(BeTrue())

				list, _ := service.ListExpenses(ctx)
				Expect(list).To(BeEmpty())
				Expect(publisher.created).To(BeEmpty())
			},
			Entry("unknown payer", func(n *services.NewExpense) { n.Payer = "Bob" }, core.ErrUnknownPayer),
			Entry("zero amount", func(n *services.NewExpense) { n.Amount = "0" }, core.ErrInvalidAmount),
			Entry("garbage amount", func(n *services.NewExpense) { n.Amount = "abc" }, core.ErrInvalidAmount),
			Entry("bad date", func(n *services.NewExpense) { n.Date = "2024-02-30" }, core.ErrInvalidDate),
			Entry("blank description", func(n *services.NewExpense) { n.Description = "   " }, core.ErrEmptyDescription),
		)

		It("should wrap storage failures", func() {
			service = services.NewExpenseService(brokenStore{store}, publisher, nil)
			_, err := service.CreateExpense(ctx, valid)
			Expect(err).To(MatchError(ContainSubstring("save expense")))
			Expect(core.IsValidation(err)).To(BeFalse())
			Expect(publisher.created).To(BeEmpty())
		})
	})

	Describe("DeleteExpense", func() {
		It("should remove the expense and publish expense.deleted", func() {
			e, err := service.CreateExpense(ctx, valid)
			Expect(err).NotTo(HaveOccurred())

			removed, err := service.DeleteExpense(ctx, e.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed.Description).To(Equal("Textbooks"))

			list, _ := service.ListExpenses(ctx)
			Expect(list).To(BeEmpty())
			Expect(publisher.deleted).To(HaveLen(1))
			Expect(publisher.deleted[0].ID).To(Equal(e.ID))

			activity, _ := service.ListActivity(ctx, 10)
			Expect(activity).To(HaveLen(2))
			Expect(activity[0].Action).To(Equal(core.ActionDelete))
		})

		It("should return ErrNotFound for unknown IDs", func() {
			_, err := service.DeleteExpense(ctx, "missing")
			Expect(errors.Is(err, services.ErrNotFound)).To(BeTrue())

			_, err = service.DeleteExpense(ctx, "  ")
			Expect(errors.Is(err, services.ErrNotFound)).To(BeTrue())
			Expect(publisher.deleted).To(BeEmpty())
		})
	})

	Describe("ListExpenses", func() {
		It("should return newest first", func() {
			first, _ := service.CreateExpense(ctx, valid)
			valid.Description = "Lab fee"
			second, _ := service.CreateExpense(ctx, valid)

			list, err := service.ListExpenses(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].ID).To(Equal(second.ID))
			Expect(list[1].ID).To(Equal(first.ID))
		})
	})
})
