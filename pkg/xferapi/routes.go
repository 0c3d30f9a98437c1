package xferapi

import (
	"github.com/labstack/echo/v4"
)

// RegisterTransferRoutes adds the transfer protocol endpoints to g, normally
// the /api group, under /largedata.
func RegisterTransferRoutes(g *echo.Group, c *TransferController) {
	ld := g.Group("/largedata")

	ld.POST("/begindownload", c.BeginDownload)
	ld.POST("/getfileslisttodownload", c.GetFilesListToDownload)
	ld.POST("/downloadfile", c.DownloadFile)
	ld.POST("/enddownload", c.EndDownload)

	ld.POST("/beginupload", c.BeginUpload)
	ld.POST("/postfile", c.PostFile)
	ld.POST("/uploadfile", c.PostFile)
	ld.POST("/processuploadedfiles", c.ProcessUploadedFiles)
	ld.POST("/getuploadprocessstatus", c.GetUploadProcessStatus)
	ld.POST("/endupload", c.EndUpload)
}

func RegisterLogRoutes(g *echo.Group, c *LogController) {
	g.POST("/set-logging-level", c.SetLogLevel)
	g.POST("/set-logging-output", c.SetLogOutput)
	g.POST("/set-transfer-logging", c.SetTransferLogging)
	g.GET("/show-logging", c.ShowCurrentLogging)
}
