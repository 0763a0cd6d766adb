package services

import (
	"fmt"
	"strings"

	"fincache/internal/core"
	"fincache/internal/remote"
)

// Domain names, also used as cache key prefixes.
const (
	DomainTransactions  = string(remote.Transactions)
	DomainBudgets       = string(remote.Budgets)
	DomainCategories    = string(remote.Categories)
	DomainNotifications = string(remote.Notifications)
	DomainStatistics    = string(remote.Statistics)
)

// Domains lists every domain in refresh order.
var Domains = []string{DomainCategories, DomainTransactions, DomainBudgets, DomainNotifications, DomainStatistics}

func collectionKey(domain string, userID int64) string {
	return fmt.Sprintf("%s:%d", domain, userID)
}

func TransactionsKey(userID int64) string { return collectionKey(DomainTransactions, userID) }
func BudgetsKey(userID int64) string { return collectionKey(DomainBudgets, userID) }
func CategoriesKey(userID int64) string { return collectionKey(DomainCategories, userID) }
func NotificationsKey(userID int64) string { return collectionKey(DomainNotifications, userID) }
func StatisticsPrefix(userID int64) string { return collectionKey(DomainStatistics, userID) }
func TransactionItemKey(userID, id int64) string {
	return fmt.Sprintf("%s:item:%d", TransactionsKey(userID), id)
}

// StatisticsKey encodes kind and every query parameter, so each
// parameterization is cached and expires on its own.
func StatisticsKey(userID int64, kind core.StatKind, q StatQuery) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s", StatisticsPrefix(userID), kind, q.Period, q.From, q.To, q.Type)
}

// parseStatisticsKey reverses StatisticsKey.
func parseStatisticsKey(key string) (userID int64, kind core.StatKind, q StatQuery, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 7 || parts[0] != DomainStatistics {
		return 0, "", StatQuery{}, false
	}
	if _, err := fmt.Sscan(parts[1], &userID); err != nil {
		return 0, "", StatQuery{}, false
	}
	kind = core.StatKind(parts[2])
	q.Period = core.Period(parts[3])
	if parts[4] != "" {
		d, err := core.ParseDate(parts[4])
		if err != nil {
			return 0, "", StatQuery{}, false
		}
		q.From = d
	}
	if parts[5] != "" {
		d, err := core.ParseDate(parts[5])
		if err != nil {
			return 0, "", StatQuery{}, false
		}
		q.To = d
	}
	q.Type = core.FlowType(parts[6])
	return userID, kind, q, true
}
