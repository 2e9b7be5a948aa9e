package main

import (
	"github.com/stashapp/stash/pkg/plugin/common"

	"github.com/smegmarip/stash-emojify-plugin/internal/rpc"
)

func main() {
	service := rpc.NewService()
	err := common.ServePlugin(service)
	if err != nil {
		panic(err)
	}
}
