package types

// Table names of the project file schema.
const (
	TableMeta           = "meta"
	TablePath           = "path"
	TableLayer          = "layer"
	TableImage          = "image"
	TableOffset         = "offset"
	TableTrack          = "track"
	TableMarkerType     = "markertype"
	TableMarker         = "marker"
	TableLine           = "line"
	TableRectangle      = "rectangle"
	TableEllipse        = "ellipse"
	TablePolygon        = "polygon"
	TablePolygonPoint   = "polygon_point"
	TableMask           = "mask"
	TableMaskType       = "masktype"
	TableAnnotation     = "annotation"
	TableTag            = "tag"
	TableTagAssociation = "tagassociation"
	TableOption         = "option"
)

// StandardTableNames lists every table of the current schema in creation order.
var StandardTableNames = []string{
	TableMeta,
	TablePath,
	TableLayer,
	TableImage,
	TableOffset,
	TableMarkerType,
	TableTrack,
	TableMarker,
	TableLine,
	TableRectangle,
	TableEllipse,
	TablePolygon,
	TablePolygonPoint,
	TableMask,
	TableMaskType,
	TableAnnotation,
	TableTag,
	TableTagAssociation,
	TableOption,
}
