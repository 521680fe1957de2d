package core

import "strings"

// OtherCategoryName names the catch-all category used for balance adjustments.
const OtherCategoryName = "Other"

func budget(units int64) *Money {
	m := NewMoney(units)
	return &m
}

// DefaultCategories returns the set seeded for an account that has none.
// IDs are assigned by the store.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Salary", Icon: "💰", Color: "hsl(160 84% 39%)", Kind: KindIncome},
		{Name: "Food", Icon: "🍔", Color: "hsl(30 90% 55%)", Kind: KindExpense, Budget: budget(5000)},
		{Name: "Transport", Icon: "🚗", Color: "hsl(200 80% 50%)", Kind: KindExpense, Budget: budget(3000)},
		{Name: "Shopping", Icon: "🛍️", Color: "hsl(330 80% 55%)", Kind: KindExpense, Budget: budget(4000)},
		{Name: "Entertainment", Icon: "🎬", Color: "hsl(280 70% 55%)", Kind: KindExpense, Budget: budget(2000)},
		{Name: "Bills", Icon: "📄", Color: "hsl(220 70% 50%)", Kind: KindExpense, Budget: budget(5000)},
		{Name: "Health", Icon: "💊", Color: "hsl(0 70% 55%)", Kind: KindExpense, Budget: budget(2000)},
		{Name: "Freelance", Icon: "💻", Color: "hsl(170 70% 45%)", Kind: KindIncome},
		{Name: "Gift", Icon: "🎁", Color: "hsl(350 80% 60%)", Kind: KindBoth, Budget: budget(1000)},
		{Name: "Investment", Icon: "📈", Color: "hsl(140 60% 45%)", Kind: KindIncome},
		{Name: "Groceries", Icon: "🛒", Color: "hsl(100 60% 45%)", Kind: KindExpense, Budget: budget(8000)},
		{Name: OtherCategoryName, Icon: "📦", Color: "hsl(220 10% 50%)", Kind: KindBoth, Budget: budget(2000)},
	}
}

// FindCategory looks a category up by id.
func FindCategory(categories []Category, id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// FindCategoryByName looks a category up by case-insensitive name.
func FindCategoryByName(categories []Category, name string) (Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}
