package db

import (
	"github.com/vikstrous/dataloadgen"
)

type dataLoaderKey string

const (
	DataLoaderKeyGroupData dataLoaderKey = "group_data_loader"
)

// GroupDataLoader batches and caches the per-request reads that group and
// expense list assembly would otherwise issue row by row.
//
//	loader, ok := ctx.Value(db.DataLoaderKeyGroupData).(*db.GroupDataLoader)
type GroupDataLoader struct {
	GetGroupInfoList *dataloadgen.Loader[string, *GroupInfo]
	GetMemberList    *dataloadgen.Loader[string, []User]
	GetExpenseList   *dataloadgen.Loader[string, []Expense]
	GetBillItemList  *dataloadgen.Loader[string, []BillItem]
}

func NewGroupDataLoader(dbWrapper PayFloDBWrapper) *GroupDataLoader {
	return &GroupDataLoader{
		GetGroupInfoList: dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetGroupInfoList),
		GetMemberList:    dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetMemberList),
		GetExpenseList:   dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetExpenseList),
		GetBillItemList:  dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetBillItemList),
	}
}
